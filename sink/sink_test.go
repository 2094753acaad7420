package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahwlsqja/proofchain/types"
)

// recorder keeps every event it receives.
type recorder struct {
	created   []uint64
	started   []uint64
	completed []time.Duration
	results   []bool
}

func (r *recorder) BlockCreated(b *types.Block)   { r.created = append(r.created, b.Index) }
func (r *recorder) MiningStarted(i uint64, _ int) { r.started = append(r.started, i) }
func (r *recorder) ValidationResult(valid bool)   { r.results = append(r.results, valid) }
func (r *recorder) MiningCompleted(_ *types.Block, d time.Duration) {
	r.completed = append(r.completed, d)
}

func sampleBlock(index uint64) *types.Block {
	b := types.NewBlock(index, "payload", "prev", time.Unix(1700000000, 0))
	b.Hash = "abc"
	b.SetConsensusData("validator", "alice")
	return b
}

func TestNopSatisfiesSink(t *testing.T) {
	var s Sink = Nop{}
	s.BlockCreated(sampleBlock(1))
	s.ValidationResult(true)
}

func TestBusFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	bus, err := NewBus(a, b)
	require.NoError(t, err)
	assert.True(t, bus.Subscribers(TopicBlockCreated))

	bus.MiningStarted(4, 2)
	bus.MiningCompleted(sampleBlock(4), time.Second)
	bus.BlockCreated(sampleBlock(4))
	bus.ValidationResult(false)

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []uint64{4}, r.started)
		assert.Equal(t, []time.Duration{time.Second}, r.completed)
		assert.Equal(t, []uint64{4}, r.created)
		assert.Equal(t, []bool{false}, r.results)
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(zap.New(core))

	s.MiningStarted(1, 4)
	s.BlockCreated(sampleBlock(1))
	s.ValidationResult(false)

	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "block created", logs.All()[1].Message)
	assert.Equal(t, zap.WarnLevel, logs.All()[2].Level)
}

func TestFileSinkWritesBlocksAndEvents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	fs, err := NewFileSink(dir, nil)
	require.NoError(t, err)

	fs.MiningStarted(1, 4)
	fs.MiningCompleted(sampleBlock(1), 15*time.Millisecond)
	fs.BlockCreated(sampleBlock(1))
	fs.ValidationResult(true)
	require.NoError(t, fs.Close())

	loaded, err := fs.LoadBlock(1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "abc", loaded.Hash)
	assert.Equal(t, "alice", loaded.Get("validator"))

	missing, err := fs.LoadBlock(99)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	assert.Equal(t, 2, countLines(t, filepath.Join(dir, MiningLog)))
	assert.Equal(t, 1, countLines(t, filepath.Join(dir, BlockCreationLog)))

	f, err := os.Open(filepath.Join(dir, ValidationLog))
	require.NoError(t, err)
	defer f.Close()
	var ev struct {
		Event string          `json:"event"`
		Data  map[string]bool `json:"data"`
	}
	require.NoError(t, json.NewDecoder(f).Decode(&ev))
	assert.Equal(t, "validation_result", ev.Event)
	assert.True(t, ev.Data["valid"])
}

func TestFileSinkSummary(t *testing.T) {
	fs, err := NewFileSink(t.TempDir(), nil)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.WriteSummary(types.Summary{Algorithm: "Proof of Work", Blocks: 3, Valid: true}))

	data, err := os.ReadFile(filepath.Join(fs.Dir(), SummaryReport))
	require.NoError(t, err)
	var got types.Summary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Proof of Work", got.Algorithm)
	assert.Equal(t, 3, got.Blocks)
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}
