package transport

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ahwlsqja/proofchain/chain"
	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/types"
)

// KindSpec names an algorithm kind by key together with its parameters.
type KindSpec struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// KindSpecOf renders kind for the wire.
func KindSpecOf(kind consensus.Kind) KindSpec {
	return KindSpec{Type: kind.Key(), Params: kind.Params()}
}

// Kind parses the spec back into a kind.
func (s KindSpec) Kind() (consensus.Kind, error) {
	return consensus.ParseKind(s.Type, types.Params(s.Params))
}

// Block is the wire form of a block.
type Block struct {
	Index         uint64                 `json:"index"`
	Timestamp     *timestamppb.Timestamp `json:"timestamp"`
	Data          string                 `json:"data"`
	PreviousHash  string                 `json:"previous_hash"`
	Hash          string                 `json:"hash"`
	Nonce         uint64                 `json:"nonce"`
	Difficulty    int                    `json:"difficulty"`
	ConsensusData map[string]string      `json:"consensus_data,omitempty"`
}

func blockToWire(b *types.Block) *Block {
	return &Block{
		Index:         b.Index,
		Timestamp:     timestamppb.New(time.Unix(b.Timestamp, 0)),
		Data:          b.Data,
		PreviousHash:  b.PreviousHash,
		Hash:          b.Hash,
		Nonce:         b.Nonce,
		Difficulty:    b.Difficulty,
		ConsensusData: b.ConsensusData,
	}
}

// ToBlock converts the wire form back into a block.
func (b *Block) ToBlock() *types.Block {
	var ts int64
	if b.Timestamp != nil {
		ts = b.Timestamp.AsTime().Unix()
	}
	data := make(map[string]string, len(b.ConsensusData))
	for k, v := range b.ConsensusData {
		data[k] = v
	}
	return &types.Block{
		Index:         b.Index,
		Timestamp:     ts,
		Data:          b.Data,
		PreviousHash:  b.PreviousHash,
		Hash:          b.Hash,
		Nonce:         b.Nonce,
		Difficulty:    b.Difficulty,
		ConsensusData: data,
	}
}

type (
	AddBlockRequest struct {
		Data string `json:"data"`
	}
	AddBlockResponse struct {
		Block         *Block               `json:"block"`
		ProofData     map[string]string    `json:"proof_data"`
		ExecutionTime *durationpb.Duration `json:"execution_time"`
		EnergyCost    *float64             `json:"energy_cost,omitempty"`
	}

	SwitchAlgorithmRequest struct {
		Kind KindSpec `json:"kind"`
	}
	SwitchAlgorithmResponse struct {
		Algorithm string `json:"algorithm"`
	}

	IsValidRequest  struct{}
	IsValidResponse struct {
		Valid bool `json:"valid"`
	}

	StatsRequest  struct{}
	StatsResponse struct {
		TotalBlocks       uint64               `json:"total_blocks"`
		TotalMiningTime   *durationpb.Duration `json:"total_mining_time"`
		AverageBlockTime  *durationpb.Duration `json:"average_block_time"`
		EnergyConsumption float64              `json:"energy_consumption"`
		ConsensusFailures uint64               `json:"consensus_failures"`
	}

	AlgorithmInfoRequest  struct{}
	AlgorithmInfoResponse struct {
		Info map[string]string `json:"info"`
	}

	// BenchmarkRequest runs the default battery when Kinds is empty.
	BenchmarkRequest struct {
		Payloads []string   `json:"payloads"`
		Kinds    []KindSpec `json:"kinds,omitempty"`
	}
	BenchmarkResponse struct {
		Results []BenchmarkResult `json:"results"`
	}
	BenchmarkResult struct {
		Algorithm string               `json:"algorithm"`
		Duration  *durationpb.Duration `json:"duration"`
		Energy    float64              `json:"energy"`
		Blocks    int                  `json:"blocks"`
	}

	BlocksRequest  struct{}
	BlocksResponse struct {
		Blocks []*Block `json:"blocks"`
	}
)

func statsToWire(s types.EngineStats) *StatsResponse {
	return &StatsResponse{
		TotalBlocks:       s.TotalBlocks,
		TotalMiningTime:   durationpb.New(s.TotalMiningTime),
		AverageBlockTime:  durationpb.New(s.AverageBlockTime),
		EnergyConsumption: s.EnergyConsumption,
		ConsensusFailures: s.ConsensusFailures,
	}
}

// ToStats converts the response back into engine statistics.
func (r *StatsResponse) ToStats() types.EngineStats {
	return types.EngineStats{
		TotalBlocks:       r.TotalBlocks,
		TotalMiningTime:   r.TotalMiningTime.AsDuration(),
		AverageBlockTime:  r.AverageBlockTime.AsDuration(),
		EnergyConsumption: r.EnergyConsumption,
		ConsensusFailures: r.ConsensusFailures,
	}
}

func benchmarkToWire(results []chain.BenchmarkResult) []BenchmarkResult {
	out := make([]BenchmarkResult, len(results))
	for i, r := range results {
		out[i] = BenchmarkResult{
			Algorithm: r.Algorithm,
			Duration:  durationpb.New(r.Duration),
			Energy:    r.Energy,
			Blocks:    r.Blocks,
		}
	}
	return out
}
