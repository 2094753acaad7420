package consensus

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	historyGenesisOutput = "genesis"
	historyEnergyCost    = 0.01
)

// historyLink is one step of the sequential hash chain.
type historyLink struct {
	previousOutput string
	output         string
}

// ProofOfHistory chains each block to the output of an iterated-hash delay function
// seeded with the previous output.
type ProofOfHistory struct {
	vdfIterations  uint64
	sequence       uint64
	previousOutput string
	links          map[uint64]historyLink
	logger         *zap.Logger
}

// NewProofOfHistory creates a ProofOfHistory instance starting from the genesis output.
func NewProofOfHistory(vdfIterations uint64, logger *zap.Logger) (*ProofOfHistory, error) {
	if vdfIterations == 0 {
		return nil, fmt.Errorf("%w: vdf_iterations must be positive", types.ErrConfiguration)
	}
	return &ProofOfHistory{
		vdfIterations:  vdfIterations,
		previousOutput: historyGenesisOutput,
		links:          make(map[uint64]historyLink),
		logger:         named(logger, "history"),
	}, nil
}

// Sequence returns the number of links produced so far.
func (h *ProofOfHistory) Sequence() uint64 { return h.sequence }

func (h *ProofOfHistory) vdf(previousOutput string, block *types.Block) string {
	input := fmt.Sprintf("%s%d%d%s%s", previousOutput, block.Index, block.Timestamp, block.Data, block.PreviousHash)
	return crypto.IterateHex(input, h.vdfIterations)
}

func historyHash(block *types.Block, output string, sequence uint64) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, output, sequence)
}

// Execute runs the delay function and advances the sequence.
func (h *ProofOfHistory) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()

	previous := h.previousOutput
	output := h.vdf(previous, block)
	h.sequence++
	h.previousOutput = output
	h.links[h.sequence] = historyLink{previousOutput: previous, output: output}

	block.Hash = historyHash(block, output, h.sequence)
	block.Nonce = h.sequence
	block.SetConsensusData("vdf_output", output)
	block.SetConsensusData("sequence", formatUint(h.sequence))

	elapsed := time.Since(start)
	proof := map[string]string{
		"algorithm_name":  h.Name(),
		"vdf_output":      output,
		"previous_output": previous,
		"sequence":        formatUint(h.sequence),
		"vdf_iterations":  formatUint(h.vdfIterations),
		"vdf_time_ms":     fmt.Sprint(elapsed.Milliseconds()),
	}

	h.logger.Debug("history link produced", zap.Uint64("index", block.Index), zap.Uint64("sequence", h.sequence))
	return types.NewConsensusResult(block, proof, elapsed, types.Float(historyEnergyCost)), nil
}

// Validate recomputes the delay function for the link named by the nonce.
func (h *ProofOfHistory) Validate(block *types.Block) bool {
	link, ok := h.links[block.Nonce]
	if !ok {
		return false
	}
	if h.vdf(link.previousOutput, block) != link.output {
		return false
	}
	return block.Hash == historyHash(block, link.output, block.Nonce)
}

// Name returns the algorithm name.
func (h *ProofOfHistory) Name() string { return "Proof of History" }

// EnergyEfficiency is fixed.
func (h *ProofOfHistory) EnergyEfficiency() (float64, bool) { return 0.85, true }

// Statistics returns chain counters.
func (h *ProofOfHistory) Statistics() map[string]string {
	return map[string]string{
		"sequence":        formatUint(h.sequence),
		"vdf_iterations":  formatUint(h.vdfIterations),
		"previous_output": h.previousOutput,
	}
}

// NextDifficulty is not applicable.
func (h *ProofOfHistory) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts vdf_iterations and reset_sequence.
func (h *ProofOfHistory) Configure(params types.Params) error {
	iterations, iok, err := params.Uint("vdf_iterations")
	if err != nil {
		return err
	}
	if iok && iterations == 0 {
		return fmt.Errorf("%w: vdf_iterations must be positive", types.ErrConfiguration)
	}
	reset, _, err := params.Bool("reset_sequence")
	if err != nil {
		return err
	}
	if iok {
		h.vdfIterations = iterations
	}
	if reset {
		h.sequence = 0
		h.previousOutput = historyGenesisOutput
		h.links = make(map[uint64]historyLink)
	}
	return nil
}
