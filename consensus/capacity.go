package consensus

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	maxPlotEntries             = 1000
	defaultVerificationSamples = 10
	capacityEnergyCost         = 0.01
	targetPrefixLen            = 8
	matchDeadlineModulus       = 10_000
	fallbackDeadlineModulus    = 100_000
)

// HashPair is one precomputed plot entry.
type HashPair struct {
	Nonce  uint64 `json:"nonce"`
	First  string `json:"first"`
	Second string `json:"second"`
}

// StoragePlot is a precomputed table of hash pairs standing in for committed disk space.
type StoragePlot struct {
	ID         string     `json:"id"`
	SizeGB     uint64     `json:"size_gb"`
	NonceCount uint64     `json:"nonce_count"`
	Entries    []HashPair `json:"entries"`
	CreatedAt  int64      `json:"created_at"`
}

// ProofOfCapacity picks the plot with the smallest deadline for the block's generation signature.
type ProofOfCapacity struct {
	plots               []*StoragePlot
	storageRequirement  uint64
	verificationSamples int
	logger              *zap.Logger
}

// NewProofOfCapacity creates an instance with no plots.
func NewProofOfCapacity(storageRequirementGB uint64, logger *zap.Logger) *ProofOfCapacity {
	return &ProofOfCapacity{
		storageRequirement:  storageRequirementGB,
		verificationSamples: defaultVerificationSamples,
		logger:              named(logger, "capacity"),
	}
}

func plotEntry(plotID string, i uint64) HashPair {
	nonce, _ := crypto.HexPrefixUint(crypto.HashParts(plotID, i), 16)
	first := crypto.HashParts(plotID, i, nonce)
	return HashPair{Nonce: nonce, First: first, Second: crypto.HashParts(first, nonce)}
}

// CreatePlot precomputes up to 1,000 entries and returns the plot id.
func (c *ProofOfCapacity) CreatePlot(sizeGB, nonceCount uint64) (string, error) {
	if sizeGB < c.storageRequirement {
		return "", fmt.Errorf("%w: plot size %dGB below requirement %dGB", types.ErrConfiguration, sizeGB, c.storageRequirement)
	}
	if nonceCount == 0 {
		return "", fmt.Errorf("%w: nonce count must be positive", types.ErrConfiguration)
	}

	id := fmt.Sprintf("plot_%d", len(c.plots))
	n := min(nonceCount, maxPlotEntries)
	plot := &StoragePlot{
		ID:         id,
		SizeGB:     sizeGB,
		NonceCount: nonceCount,
		Entries:    make([]HashPair, 0, n),
		CreatedAt:  time.Now().Unix(),
	}
	for i := uint64(0); i < n; i++ {
		plot.Entries = append(plot.Entries, plotEntry(id, i))
	}
	c.plots = append(c.plots, plot)

	c.logger.Info("plot created", zap.String("plot_id", id), zap.Uint64("size_gb", sizeGB), zap.Uint64("entries", n))
	return id, nil
}

// Plots returns the plot ids in creation order.
func (c *ProofOfCapacity) Plots() []string {
	ids := make([]string, len(c.plots))
	for i, p := range c.plots {
		ids[i] = p.ID
	}
	return ids
}

// TotalCapacity sums the plot sizes.
func (c *ProofOfCapacity) TotalCapacity() uint64 {
	var total uint64
	for _, p := range c.plots {
		total += p.SizeGB
	}
	return total
}

// VerifyPlot spot-checks evenly spaced entries.
func (c *ProofOfCapacity) VerifyPlot(p *StoragePlot) bool {
	if p.SizeGB < c.storageRequirement || len(p.Entries) == 0 {
		return false
	}
	samples := min(c.verificationSamples, len(p.Entries))
	if samples <= 0 {
		samples = 1
	}
	step := len(p.Entries) / samples
	for s := 0; s < samples; s++ {
		i := s * step
		want := plotEntry(p.ID, uint64(i))
		if p.Entries[i] != want {
			return false
		}
	}
	return true
}

func generationSignature(block *types.Block, plotID string) string {
	return crypto.HashParts(block.PreviousHash, block.Index, plotID)
}

// deadline scans the plot for an entry matching the target prefix.
// Without a match the first entry yields the fallback deadline.
func deadline(p *StoragePlot, block *types.Block) (uint64, string) {
	target := generationSignature(block, p.ID)[:targetPrefixLen]
	for i, e := range p.Entries {
		if strings.HasPrefix(e.First, target) {
			v, _ := crypto.HexPrefixUint(e.First, targetPrefixLen)
			return uint64(i+1)*1000 + v%matchDeadlineModulus, e.First
		}
	}
	first := p.Entries[0].First
	v, _ := crypto.HexPrefixUint(first, targetPrefixLen)
	return v % fallbackDeadlineModulus, first
}

func capacityHash(block *types.Block, plotID, winningHash string) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, plotID, winningHash)
}

// Execute picks the plot with the smallest deadline; ties go to the earliest plot.
func (c *ProofOfCapacity) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if len(c.plots) == 0 {
		return nil, fmt.Errorf("%w: no storage plots", types.ErrInsufficientResources)
	}
	if total := c.TotalCapacity(); total < c.storageRequirement {
		return nil, fmt.Errorf("%w: total capacity %dGB below requirement %dGB", types.ErrInsufficientResources, total, c.storageRequirement)
	}

	var (
		best        *StoragePlot
		bestLine    uint64
		winningHash string
	)
	for _, p := range c.plots {
		if len(p.Entries) == 0 {
			continue
		}
		d, h := deadline(p, block)
		if best == nil || d < bestLine {
			best, bestLine, winningHash = p, d, h
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no plot produced a deadline", types.ErrInsufficientResources)
	}

	block.Hash = capacityHash(block, best.ID, winningHash)
	block.Nonce = bestLine
	block.SetConsensusData("plot_id", best.ID)
	block.SetConsensusData("deadline", formatUint(bestLine))
	block.SetConsensusData("winning_hash", winningHash)

	proof := map[string]string{
		"algorithm_name":    c.Name(),
		"plot_id":           best.ID,
		"deadline":          formatUint(bestLine),
		"winning_hash":      winningHash,
		"plot_size_gb":      formatUint(best.SizeGB),
		"total_capacity_gb": formatUint(c.TotalCapacity()),
	}

	c.logger.Info("deadline won", zap.Uint64("index", block.Index), zap.String("plot_id", best.ID), zap.Uint64("deadline", bestLine))
	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(capacityEnergyCost)), nil
}

// Validate re-derives the deadline of each verified plot and checks the one matching the nonce.
func (c *ProofOfCapacity) Validate(block *types.Block) bool {
	if c.TotalCapacity() < c.storageRequirement {
		return false
	}
	for _, p := range c.plots {
		if !c.VerifyPlot(p) {
			continue
		}
		d, h := deadline(p, block)
		if d == block.Nonce && block.Hash == capacityHash(block, p.ID, h) {
			return true
		}
	}
	return false
}

// Name returns the algorithm name.
func (c *ProofOfCapacity) Name() string { return "Proof of Capacity" }

// EnergyEfficiency is fixed.
func (c *ProofOfCapacity) EnergyEfficiency() (float64, bool) { return 0.95, true }

// Statistics returns plot counters.
func (c *ProofOfCapacity) Statistics() map[string]string {
	return map[string]string{
		"plots":                  fmt.Sprint(len(c.plots)),
		"total_capacity_gb":      formatUint(c.TotalCapacity()),
		"storage_requirement_gb": formatUint(c.storageRequirement),
		"verification_samples":   fmt.Sprint(c.verificationSamples),
	}
}

// NextDifficulty is not applicable.
func (c *ProofOfCapacity) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts storage_requirement_gb and verification_samples.
func (c *ProofOfCapacity) Configure(params types.Params) error {
	req, rok, err := params.Uint("storage_requirement_gb")
	if err != nil {
		return err
	}
	samples, sok, err := params.Int("verification_samples")
	if err != nil {
		return err
	}
	if sok && samples < 1 {
		return fmt.Errorf("%w: verification_samples must be at least 1", types.ErrConfiguration)
	}
	if rok {
		c.storageRequirement = req
	}
	if sok {
		c.verificationSamples = samples
	}
	return nil
}
