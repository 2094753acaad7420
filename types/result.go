package types

import (
	"time"
)

// ConsensusResult is produced once per successful execute and never mutated afterwards.
type ConsensusResult struct {
	Block         Block             `json:"block"`
	ProofData     map[string]string `json:"proof_data"`
	ExecutionTime time.Duration     `json:"execution_time"`
	EnergyCost    *float64          `json:"energy_cost,omitempty"`
}

// NewConsensusResult snapshots the finalized block.
func NewConsensusResult(block *Block, proof map[string]string, elapsed time.Duration, energy *float64) *ConsensusResult {
	return &ConsensusResult{
		Block:         *block.Clone(),
		ProofData:     proof,
		ExecutionTime: elapsed,
		EnergyCost:    energy,
	}
}

// Energy returns the energy cost, or 0 when the algorithm did not report one.
func (r *ConsensusResult) Energy() float64 {
	if r.EnergyCost == nil {
		return 0
	}
	return *r.EnergyCost
}

// Float is a helper for building optional energy costs.
func Float(v float64) *float64 {
	return &v
}

// EngineStats holds the running counters of an engine.
type EngineStats struct {
	TotalBlocks       uint64        `json:"total_blocks"`
	TotalMiningTime   time.Duration `json:"total_mining_time"`
	AverageBlockTime  time.Duration `json:"average_block_time"`
	EnergyConsumption float64       `json:"energy_consumption"`
	ConsensusFailures uint64        `json:"consensus_failures"`
}

// DifficultyStats summarises the difficulty column of a chain.
type DifficultyStats struct {
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Average float64 `json:"average"`
}

// Summary is a point-in-time report of an engine.
type Summary struct {
	Algorithm   string          `json:"algorithm"`
	Blocks      int             `json:"blocks"`
	Valid       bool            `json:"valid"`
	Stats       EngineStats     `json:"stats"`
	Difficulty  DifficultyStats `json:"difficulty"`
	GeneratedAt time.Time       `json:"generated_at"`
}
