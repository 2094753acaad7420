package chain

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/consensus/pbft"
	"github.com/ahwlsqja/proofchain/metrics"
	"github.com/ahwlsqja/proofchain/types"
)

type recorder struct {
	mu          sync.Mutex
	created     []uint64
	started     []uint64
	completed   []uint64
	validations []bool
}

func (r *recorder) BlockCreated(b *types.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, b.Index)
}

func (r *recorder) MiningStarted(index uint64, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, index)
}

func (r *recorder) MiningCompleted(b *types.Block, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, b.Index)
}

func (r *recorder) ValidationResult(valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, valid)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Unix(1700000000, 0) }
	return cfg
}

func newTestEngine(t *testing.T, kind consensus.Kind) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e, err := NewEngine(testConfig(), kind, rec, nil, nil)
	require.NoError(t, err)
	return e, rec
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.GenesisPreviousHash = ""
	assert.Equal(t, ErrEmptyGenesisPreviousHash, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Now = nil
	assert.Equal(t, ErrNilClock, cfg.Validate())

	_, err := NewEngine(cfg, consensus.Work{Difficulty: 1}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilClock)
}

func TestNewEngineGenesis(t *testing.T) {
	e, rec := newTestEngine(t, consensus.Work{Difficulty: 1})

	blocks := e.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, uint64(0), blocks[0].Index)
	assert.Equal(t, "Genesis Block", blocks[0].Data)
	assert.Equal(t, "0", blocks[0].PreviousHash)
	assert.NotEmpty(t, blocks[0].Hash)
	assert.Equal(t, "0", blocks[0].Hash[:1])

	assert.Equal(t, uint64(1), e.Stats().TotalBlocks)
	assert.Equal(t, []uint64{0}, rec.created)
	assert.Equal(t, []uint64{0}, rec.completed)
}

func TestNewEngineRejectsBadKind(t *testing.T) {
	_, err := NewEngine(testConfig(), consensus.Authority{}, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = NewEngine(testConfig(), nil, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestGenesisFailureTolerated(t *testing.T) {
	// no validators: genesis cannot be finalized
	e, rec := newTestEngine(t, consensus.Stake{MinimumStake: 1000})

	blocks := e.Blocks()
	require.Len(t, blocks, 1)
	assert.Empty(t, blocks[0].Hash)
	assert.Equal(t, []uint64{0}, rec.created)
	assert.Empty(t, rec.completed)
	assert.Equal(t, uint64(0), e.Stats().ConsensusFailures)
}

func TestAddBlockLinksChain(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 2})

	for _, payload := range []string{"tx-1", "tx-2", "tx-3"} {
		res, err := e.AddBlock(payload)
		require.NoError(t, err)
		assert.Equal(t, payload, res.Block.Data)
		assert.Equal(t, "00", res.Block.Hash[:2])
	}

	blocks := e.Blocks()
	require.Len(t, blocks, 4)
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, uint64(i), blocks[i].Index)
		assert.Equal(t, blocks[i-1].Hash, blocks[i].PreviousHash)
	}
	assert.True(t, e.IsValid())

	stats := e.Stats()
	assert.Equal(t, uint64(4), stats.TotalBlocks)
	assert.Equal(t, stats.TotalMiningTime/4, stats.AverageBlockTime)
	assert.Greater(t, stats.EnergyConsumption, 0.0)
}

func TestAddBlockFailureNotAppended(t *testing.T) {
	e, rec := newTestEngine(t, consensus.Stake{MinimumStake: 1000})

	_, err := e.AddBlock("tx-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientResources)
	assert.True(t, IsConsensusFailure(err))
	assert.Contains(t, err.Error(), "consensus failed")

	assert.Len(t, e.Blocks(), 1)
	assert.Equal(t, uint64(1), e.Stats().ConsensusFailures)
	assert.Equal(t, []uint64{0, 1}, rec.started)
	assert.Equal(t, []uint64{0}, rec.created)

	// 검증자 추가 후 성공
	err = e.Manage(func(alg consensus.Algorithm) error {
		return alg.(*consensus.ProofOfStake).AddValidator("validator1", 5000)
	})
	require.NoError(t, err)

	_, err = e.AddBlock("tx-1")
	require.NoError(t, err)
	assert.Len(t, e.Blocks(), 2)
}

func TestAddBlockPBFTFaulty(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Byzantine{NodeCount: 4, FaultTolerance: 0.33})

	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)

	err = e.Manage(func(alg consensus.Algorithm) error {
		return alg.(*pbft.Agreement).SetFaultyNodes([]int{0})
	})
	require.NoError(t, err)

	_, err = e.AddBlock("tx-2")
	require.Error(t, err)
	assert.True(t, IsConsensusFailure(err))
	assert.Len(t, e.Blocks(), 2)
	assert.Equal(t, uint64(1), e.Stats().ConsensusFailures)
}

func TestSwitchAlgorithm(t *testing.T) {
	e, rec := newTestEngine(t, consensus.Work{Difficulty: 1})

	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)
	require.True(t, e.IsValid())

	require.NoError(t, e.SwitchAlgorithm(consensus.Authority{Validators: []string{"a", "b"}}))
	assert.Equal(t, consensus.KeyAuthority, e.Kind().Key())
	assert.Equal(t, "Proof of Authority", e.Algorithm().Name())
	assert.Len(t, e.Blocks(), 2)

	_, err = e.AddBlock("tx-2")
	require.NoError(t, err)

	// pre-switch blocks are judged by the new algorithm
	assert.False(t, e.IsValid())
	assert.Equal(t, []bool{true, false}, rec.validations)
}

func TestSwitchAlgorithmFailureKeepsCurrent(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 1})

	err := e.SwitchAlgorithm(consensus.Byzantine{NodeCount: 0, FaultTolerance: 0.33})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
	assert.Equal(t, "Proof of Work", e.Algorithm().Name())
	assert.Equal(t, consensus.KeyWork, e.Kind().Key())
}

func TestIsValidDetectsBrokenLink(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 1})
	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)
	_, err = e.AddBlock("tx-2")
	require.NoError(t, err)

	e.mu.Lock()
	e.blocks[2].PreviousHash = "tampered"
	e.mu.Unlock()

	assert.False(t, e.IsValid())
}

func TestAlgorithmInfo(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 2})
	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)

	info, err := e.AlgorithmInfo()
	require.NoError(t, err)
	assert.Equal(t, "Proof of Work", info["algorithm_name"])
	assert.Equal(t, "2", info["total_blocks"])
	assert.Equal(t, "0", info["consensus_failures"])
	assert.Equal(t, "0.25", info["energy_efficiency"])
	assert.Equal(t, "2", info["difficulty"])
	assert.Contains(t, info, "average_block_time_ms")
	assert.Contains(t, info, "total_energy_consumption")
}

func TestNoActiveAlgorithm(t *testing.T) {
	e2, _ := newTestEngine(t, consensus.Work{Difficulty: 1})
	e2.algorithm = nil

	_, err := e2.AlgorithmInfo()
	assert.ErrorIs(t, err, types.ErrNoActiveAlgorithm)
	_, err = e2.AddBlock("tx")
	assert.ErrorIs(t, err, types.ErrNoActiveAlgorithm)
	assert.ErrorIs(t, e2.Configure(types.Params{}), types.ErrNoActiveAlgorithm)
	_, err = e2.Summary()
	assert.ErrorIs(t, err, types.ErrNoActiveAlgorithm)
	assert.False(t, e2.IsValid())
	_, ok := e2.AdaptiveDifficulty()
	assert.False(t, ok)
}

func TestConfigureAndDifficulty(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 1})

	require.NoError(t, e.Configure(types.Params{"difficulty": "2"}))
	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)

	ds := e.DifficultyStats()
	assert.Equal(t, 1, ds.Min)
	assert.Equal(t, 2, ds.Max)
	assert.InDelta(t, 1.5, ds.Average, 1e-9)

	err = e.Configure(types.Params{"difficulty": "x"})
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, ok := e.AdaptiveDifficulty()
	assert.True(t, ok)
}

func TestSummary(t *testing.T) {
	e, rec := newTestEngine(t, consensus.History{VDFIterations: 10})
	_, err := e.AddBlock("tx-1")
	require.NoError(t, err)

	s, err := e.Summary()
	require.NoError(t, err)
	assert.Equal(t, "Proof of History", s.Algorithm)
	assert.Equal(t, 2, s.Blocks)
	assert.True(t, s.Valid)
	assert.Equal(t, uint64(2), s.Stats.TotalBlocks)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), s.GeneratedAt)
	assert.Equal(t, []bool{true}, rec.validations)
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics("test", reg)
	require.NoError(t, err)

	e, err := NewEngine(testConfig(), consensus.Work{Difficulty: 1}, nil, m, nil)
	require.NoError(t, err)

	_, err = e.AddBlock("tx-1")
	require.NoError(t, err)
	require.NoError(t, e.SwitchAlgorithm(consensus.Stake{MinimumStake: 10}))
	_, err = e.AddBlock("tx-2")
	require.Error(t, err)
	e.IsValid()

	expected := `
# HELP test_algorithm_switches_total Total number of algorithm switches
# TYPE test_algorithm_switches_total counter
test_algorithm_switches_total 1
# HELP test_blocks_total Total number of blocks finalized, by algorithm
# TYPE test_blocks_total counter
test_blocks_total{algorithm="Proof of Work"} 1
# HELP test_chain_height Number of blocks in the chain, genesis included
# TYPE test_chain_height gauge
test_chain_height 2
# HELP test_consensus_failures_total Total number of failed finalization attempts, by algorithm
# TYPE test_consensus_failures_total counter
test_consensus_failures_total{algorithm="Proof of Stake"} 1
# HELP test_validations_total Total number of whole-chain validations, by result
# TYPE test_validations_total counter
test_validations_total{result="invalid"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_algorithm_switches_total",
		"test_blocks_total",
		"test_chain_height",
		"test_consensus_failures_total",
		"test_validations_total",
	)
	assert.NoError(t, err)
}

func TestBenchmark(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 1})
	before := e.Blocks()

	results, err := e.Benchmark([]string{"Transaction 1", "Transaction 2", "Transaction 3"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Algorithm
		assert.Equal(t, 3, r.Blocks, r.Algorithm)
		assert.Greater(t, r.Energy, 0.0, r.Algorithm)
	}
	assert.Equal(t, []string{"Proof of Work", "Proof of Stake", "Proof of Authority", "Proof of History"}, names)

	assert.Equal(t, before, e.Blocks())
	assert.Equal(t, uint64(1), e.Stats().TotalBlocks)
}

func TestBenchmarkKinds(t *testing.T) {
	e, _ := newTestEngine(t, consensus.Work{Difficulty: 1})

	// a stake instance without validators skips every block
	results, err := e.BenchmarkKinds([]consensus.Kind{consensus.Stake{MinimumStake: 1}}, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Blocks)
	assert.Equal(t, time.Duration(0), results[0].Duration)

	_, err = e.BenchmarkKinds([]consensus.Kind{consensus.Authority{}}, []string{"a"})
	assert.True(t, errors.Is(err, types.ErrConfiguration))
}

func TestAlgorithmLogsCarrySingleComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e, err := NewEngine(testConfig(), consensus.Work{Difficulty: 1}, nil, nil, zap.New(core))
	require.NoError(t, err)

	require.NoError(t, e.SwitchAlgorithm(consensus.Authority{Validators: []string{"a", "b"}}))
	_, err = e.AddBlock("tx-1")
	require.NoError(t, err)
	_, err = e.BenchmarkKinds([]consensus.Kind{consensus.Authority{Validators: []string{"c"}}}, []string{"x"})
	require.NoError(t, err)

	signed := logs.FilterMessage("block signed").All()
	require.Len(t, signed, 2)
	for _, entry := range logs.All() {
		var components []string
		for _, f := range entry.Context {
			if f.Key == "component" {
				components = append(components, f.String)
			}
		}
		assert.Len(t, components, 1, entry.Message)
	}
	assert.Equal(t, "authority", signed[0].ContextMap()["component"])
}
