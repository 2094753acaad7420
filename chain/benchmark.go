package chain

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/types"
)

// BenchmarkResult is the aggregate cost of finalizing a payload set with one algorithm.
type BenchmarkResult struct {
	Algorithm string        `json:"algorithm"`
	Duration  time.Duration `json:"duration"`
	Energy    float64       `json:"energy"`
	Blocks    int           `json:"blocks"` // 성공한 블록 수
}

// DefaultBenchmarkKinds is the fixed battery used by Benchmark.
func DefaultBenchmarkKinds() []consensus.Kind {
	return []consensus.Kind{
		consensus.Work{Difficulty: 2},
		consensus.Stake{
			MinimumStake: 1000,
			Validators: []consensus.ValidatorSeed{
				{Address: "validator1", Stake: 5000},
				{Address: "validator2", Stake: 3000},
			},
		},
		consensus.Authority{Validators: []string{"validator1", "validator2"}},
		consensus.History{VDFIterations: 1000},
	}
}

// Benchmark runs payloads through disposable instances of DefaultBenchmarkKinds.
// Engine state is not touched.
func (e *Engine) Benchmark(payloads []string) ([]BenchmarkResult, error) {
	return e.BenchmarkKinds(DefaultBenchmarkKinds(), payloads)
}

// BenchmarkKinds runs payloads through a fresh instance of each kind. Blocks whose
// execution fails are skipped; a kind that cannot be built aborts the run.
func (e *Engine) BenchmarkKinds(kinds []consensus.Kind, payloads []string) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(kinds))
	for _, kind := range kinds {
		alg, err := consensus.New(kind, e.base)
		if err != nil {
			return nil, fmt.Errorf("benchmark %v: %w", describeKind(kind), err)
		}

		result := BenchmarkResult{Algorithm: alg.Name()}
		for i, payload := range payloads {
			block := types.NewBlock(uint64(i), payload, e.config.BenchmarkPreviousHash, e.config.Now())
			start := time.Now()
			res, err := alg.Execute(block)
			if err != nil {
				e.logger.Debug("benchmark block skipped",
					zap.String("algorithm", alg.Name()),
					zap.Int("index", i),
					zap.Error(err),
				)
				continue
			}
			result.Duration += time.Since(start)
			result.Energy += res.Energy()
			result.Blocks++
		}

		e.logger.Info("benchmark finished",
			zap.String("algorithm", result.Algorithm),
			zap.Duration("duration", result.Duration),
			zap.Float64("energy", result.Energy),
		)
		results = append(results, result)
	}
	return results, nil
}

func describeKind(kind consensus.Kind) string {
	if kind == nil {
		return "<nil>"
	}
	return kind.Key()
}
