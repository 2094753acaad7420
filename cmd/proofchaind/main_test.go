package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/sink"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), "", pflag.NewFlagSet("test", pflag.ContinueOnError))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, consensus.KeyWork, cfg.Algorithm)
	assert.Equal(t, "proofchain", cfg.MetricsNamespace)

	kind, err := cfg.kind()
	require.NoError(t, err)
	assert.Equal(t, consensus.Work{Difficulty: 4}, kind)
}

func TestLoadConfigEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proofchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("algorithm: pbft\nparams:\n  node_count: \"7\"\nlog:\n  format: json\n"), 0644))
	t.Setenv("PROOFCHAIN_LOG_LEVEL", "debug")

	cfg, err := loadConfig(viper.New(), path, pflag.NewFlagSet("test", pflag.ContinueOnError))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	kind, err := cfg.kind()
	require.NoError(t, err)
	assert.Equal(t, consensus.Byzantine{NodeCount: 7, FaultTolerance: 0.33}, kind)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("algorithm", "pow", "")
	flags.StringToString("param", nil, "")
	require.NoError(t, flags.Parse([]string{"--algorithm", "poa", "--param", "validators=a"}))

	cfg, err := loadConfig(viper.New(), "", flags)
	require.NoError(t, err)
	kind, err := cfg.kind()
	require.NoError(t, err)
	assert.Equal(t, consensus.Authority{Validators: []string{"a"}}, kind)
}

func TestAlgorithmsCommand(t *testing.T) {
	out := execute(t, "algorithms")
	for _, kind := range consensus.DescribeAll() {
		assert.Contains(t, out, kind.Name())
	}
}

func TestRunCommandWritesSummary(t *testing.T) {
	dir := t.TempDir()
	out := execute(t, "run", "--algorithm", "poa", "--blocks", "2", "--sink-dir", dir)

	assert.Contains(t, out, "Algorithm: Proof of Authority")
	assert.Contains(t, out, "Block 2: added")
	assert.Contains(t, out, "Chain validation: Valid")

	assert.FileExists(t, filepath.Join(dir, sink.SummaryReport))
	assert.FileExists(t, filepath.Join(dir, "blocks", "block_2.json"))
}

func TestBenchmarkCommand(t *testing.T) {
	out := execute(t, "benchmark", "--algorithms", "poh,poa", "--payload", "a,b")
	assert.Contains(t, out, "Time (ms)")
	assert.Contains(t, out, "Proof of History")
	assert.Contains(t, out, "Proof of Authority")
	assert.NotContains(t, out, "Proof of Work")
}

func TestDemoCommand(t *testing.T) {
	out := execute(t, "demo", "--blocks", "1")
	assert.Contains(t, out, "Initial algorithm: Proof of Work")
	assert.Contains(t, out, "Switched to Proof of Stake")
	assert.Contains(t, out, "Block 2 failed")
	assert.Contains(t, out, "Block 3 added with PoA")
	assert.Contains(t, out, "Final validation: Invalid")
}
