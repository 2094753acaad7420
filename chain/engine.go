package chain

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/metrics"
	"github.com/ahwlsqja/proofchain/sink"
	"github.com/ahwlsqja/proofchain/types"
)

// Engine owns the active algorithm, the append-only block list and running statistics.
// Every operation holds the engine lock, so at most one execute is in flight and a switch
// never races an add.
type Engine struct {
	mu sync.Mutex

	config    *Config
	kind      consensus.Kind
	algorithm consensus.Algorithm
	blocks    []types.Block
	stats     types.EngineStats

	sink    sink.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
	base    *zap.Logger // 알고리즘 인스턴스용, component 필드 없음
}

// NewEngine builds the algorithm for kind and finalizes a genesis block with it.
// A genesis failure is logged and tolerated; the genesis block then keeps an empty hash.
// s, m and logger may be nil.
func NewEngine(config *Config, kind consensus.Kind, s sink.Sink, m *metrics.Metrics, logger *zap.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s == nil {
		s = sink.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		config:  config,
		sink:    s,
		metrics: m,
		logger:  logger.With(zap.String("component", "engine")),
		base:    logger,
	}

	alg, err := consensus.New(kind, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create algorithm: %w", err)
	}
	e.kind = kind
	e.algorithm = alg

	e.createGenesis()
	return e, nil
}

func (e *Engine) createGenesis() {
	genesis := types.NewBlock(0, e.config.GenesisData, e.config.GenesisPreviousHash, e.config.Now())
	e.sink.MiningStarted(genesis.Index, genesis.Difficulty)

	res, err := e.algorithm.Execute(genesis)
	if err != nil {
		e.logger.Warn("genesis finalization failed, continuing with unfinalized genesis",
			zap.String("algorithm", e.algorithm.Name()),
			zap.Error(err),
		)
	} else {
		e.sink.MiningCompleted(genesis.Clone(), res.ExecutionTime)
		e.logger.Info("genesis created", zap.String("algorithm", e.algorithm.Name()), zap.String("hash", genesis.Hash))
	}

	e.blocks = append(e.blocks, *genesis)
	e.stats.TotalBlocks = 1
	e.sink.BlockCreated(genesis.Clone())
	if e.metrics != nil {
		e.metrics.SetChainHeight(len(e.blocks))
	}
}

// AddBlock finalizes a block carrying payload with the active algorithm and appends it.
// On failure nothing is appended and the failure counter is incremented.
func (e *Engine) AddBlock(payload string) (*types.ConsensusResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.algorithm == nil {
		return nil, types.ErrNoActiveAlgorithm
	}

	prev := e.blocks[len(e.blocks)-1]
	block := types.NewBlock(uint64(len(e.blocks)), payload, prev.Hash, e.config.Now())
	e.sink.MiningStarted(block.Index, block.Difficulty)

	res, err := e.algorithm.Execute(block)
	if err != nil {
		e.stats.ConsensusFailures++
		if e.metrics != nil {
			e.metrics.IncrementFailures(e.algorithm.Name())
		}
		e.logger.Warn("consensus failed",
			zap.String("algorithm", e.algorithm.Name()),
			zap.Uint64("index", block.Index),
			zap.Error(err),
		)
		return nil, fmt.Errorf("consensus failed: %w", err)
	}

	e.blocks = append(e.blocks, *block.Clone())
	e.stats.TotalBlocks++
	e.stats.TotalMiningTime += res.ExecutionTime
	e.stats.AverageBlockTime = e.stats.TotalMiningTime / time.Duration(e.stats.TotalBlocks)
	e.stats.EnergyConsumption += res.Energy()

	if e.metrics != nil {
		e.metrics.ObserveBlock(e.algorithm.Name(), res.ExecutionTime, res.Energy())
		e.metrics.SetChainHeight(len(e.blocks))
	}

	e.sink.MiningCompleted(block.Clone(), res.ExecutionTime)
	e.sink.BlockCreated(block.Clone())

	e.logger.Info("block added",
		zap.Uint64("index", block.Index),
		zap.String("algorithm", e.algorithm.Name()),
		zap.String("hash", block.ShortHash(16)),
		zap.Duration("elapsed", res.ExecutionTime),
	)
	return res, nil
}

// SwitchAlgorithm replaces the active algorithm with a fresh instance for kind.
// Existing blocks are kept. On failure the previous algorithm stays active.
func (e *Engine) SwitchAlgorithm(kind consensus.Kind) error {
	alg, err := consensus.New(kind, e.base)
	if err != nil {
		return fmt.Errorf("failed to create algorithm: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	from := "none"
	if e.algorithm != nil {
		from = e.algorithm.Name()
	}
	e.kind = kind
	e.algorithm = alg

	if e.metrics != nil {
		e.metrics.IncrementSwitches()
	}
	e.logger.Info("algorithm switched", zap.String("from", from), zap.String("to", alg.Name()))
	return nil
}

// IsValid checks every link and validates every non-genesis block with the active algorithm.
// Blocks finalized by an earlier algorithm are judged by the current one.
func (e *Engine) IsValid() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.isValidLocked()
}

func (e *Engine) isValidLocked() bool {
	valid := e.algorithm != nil
	for i := 1; valid && i < len(e.blocks); i++ {
		current := e.blocks[i].Clone()
		if current.PreviousHash != e.blocks[i-1].Hash {
			e.logger.Debug("broken link", zap.Uint64("index", current.Index))
			valid = false
			break
		}
		if !e.algorithm.Validate(current) {
			e.logger.Debug("block failed validation", zap.Uint64("index", current.Index))
			valid = false
		}
	}

	e.sink.ValidationResult(valid)
	if e.metrics != nil {
		e.metrics.ObserveValidation(valid)
	}
	return valid
}

// Stats returns a copy of the running statistics.
func (e *Engine) Stats() types.EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats
}

// AlgorithmInfo reports the active algorithm together with the engine statistics.
func (e *Engine) AlgorithmInfo() (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.algorithm == nil {
		return nil, types.ErrNoActiveAlgorithm
	}

	info := make(map[string]string)
	for k, v := range e.algorithm.Statistics() {
		info[k] = v
	}
	info["algorithm_name"] = e.algorithm.Name()
	info["total_blocks"] = strconv.FormatUint(e.stats.TotalBlocks, 10)
	info["average_block_time_ms"] = strconv.FormatInt(e.stats.AverageBlockTime.Milliseconds(), 10)
	info["total_energy_consumption"] = strconv.FormatFloat(e.stats.EnergyConsumption, 'f', -1, 64)
	info["consensus_failures"] = strconv.FormatUint(e.stats.ConsensusFailures, 10)
	if eff, ok := e.algorithm.EnergyEfficiency(); ok {
		info["energy_efficiency"] = strconv.FormatFloat(eff, 'f', -1, 64)
	}
	return info, nil
}

// Blocks returns a copy of the chain.
func (e *Engine) Blocks() []types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Block, len(e.blocks))
	for i := range e.blocks {
		out[i] = *e.blocks[i].Clone()
	}
	return out
}

// Kind returns the kind of the active algorithm.
func (e *Engine) Kind() consensus.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.kind
}

// Algorithm returns the active algorithm. Callers that mutate it while the engine
// is shared should go through Manage instead.
func (e *Engine) Algorithm() consensus.Algorithm {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.algorithm
}

// Manage runs fn against the active algorithm under the engine lock, for
// algorithm-specific management such as adding validators or marking faulty nodes.
func (e *Engine) Manage(fn func(consensus.Algorithm) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.algorithm == nil {
		return types.ErrNoActiveAlgorithm
	}
	return fn(e.algorithm)
}

// Configure forwards runtime parameters to the active algorithm.
func (e *Engine) Configure(params types.Params) error {
	return e.Manage(func(alg consensus.Algorithm) error {
		return alg.Configure(params)
	})
}

// AdaptiveDifficulty asks the active algorithm for the next difficulty given the chain so far.
func (e *Engine) AdaptiveDifficulty() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.algorithm == nil {
		return 0, false
	}
	return e.algorithm.NextDifficulty(e.blocks)
}

// DifficultyStats summarises the difficulty of every block in the chain.
func (e *Engine) DifficultyStats() types.DifficultyStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return difficultyStats(e.blocks)
}

func difficultyStats(blocks []types.Block) types.DifficultyStats {
	if len(blocks) == 0 {
		return types.DifficultyStats{}
	}
	ds := types.DifficultyStats{Min: blocks[0].Difficulty, Max: blocks[0].Difficulty}
	total := 0
	for _, b := range blocks {
		ds.Min = min(ds.Min, b.Difficulty)
		ds.Max = max(ds.Max, b.Difficulty)
		total += b.Difficulty
	}
	ds.Average = float64(total) / float64(len(blocks))
	return ds
}

// Summary validates the chain and reports it together with the statistics.
func (e *Engine) Summary() (types.Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.algorithm == nil {
		return types.Summary{}, types.ErrNoActiveAlgorithm
	}
	return types.Summary{
		Algorithm:   e.algorithm.Name(),
		Blocks:      len(e.blocks),
		Valid:       e.isValidLocked(),
		Stats:       e.stats,
		Difficulty:  difficultyStats(e.blocks),
		GeneratedAt: e.config.Now().UTC(),
	}, nil
}

// IsConsensusFailure reports whether err came from an algorithm refusing to finalize a block.
func IsConsensusFailure(err error) bool {
	return errors.Is(err, types.ErrInsufficientResources) || errors.Is(err, types.ErrConsensusNotReached)
}
