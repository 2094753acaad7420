package consensus

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	// DefaultBurnAddress is the provably unspendable destination of burns.
	DefaultBurnAddress = "1111111111111111111114oLvT2"

	defaultDecayFactor = 0.95
	burnEnergyCost     = 0.005
	burnNonceDigits    = 16
)

// BurnRecord is a registered burn. Timestamp is the block index it was recorded at.
type BurnRecord struct {
	Amount    uint64 `json:"amount"`
	Timestamp uint64 `json:"timestamp"`
	TxHash    string `json:"tx_hash"`
}

// ProofOfBurn selects a burn record by lottery weighted by decayed burn power.
type ProofOfBurn struct {
	records     []BurnRecord
	minimumBurn uint64
	decayFactor float64
	burnAddress string
	logger      *zap.Logger
}

// NewProofOfBurn creates an empty ProofOfBurn instance.
func NewProofOfBurn(minimumBurn uint64, logger *zap.Logger) *ProofOfBurn {
	return &ProofOfBurn{
		minimumBurn: minimumBurn,
		decayFactor: defaultDecayFactor,
		burnAddress: DefaultBurnAddress,
		logger:      named(logger, "burn"),
	}
}

// AddBurn records a burn of amount at the given block index and returns its digest.
func (b *ProofOfBurn) AddBurn(amount, timestamp uint64) (string, error) {
	if amount < b.minimumBurn {
		return "", fmt.Errorf("%w: burn amount %d below minimum %d", types.ErrConfiguration, amount, b.minimumBurn)
	}
	txHash := crypto.HashParts(amount, b.burnAddress, timestamp)
	b.records = append(b.records, BurnRecord{Amount: amount, Timestamp: timestamp, TxHash: txHash})
	b.logger.Info("burn recorded", zap.Uint64("amount", amount), zap.String("tx_hash", txHash))
	return txHash, nil
}

// Records returns a copy of the burn records.
func (b *ProofOfBurn) Records() []BurnRecord {
	return append([]BurnRecord(nil), b.records...)
}

// Power is amount × decay^(at − timestamp), with age saturating at zero.
func (b *ProofOfBurn) Power(r BurnRecord, at uint64) float64 {
	var age uint64
	if at > r.Timestamp {
		age = at - r.Timestamp
	}
	return float64(r.Amount) * math.Pow(b.decayFactor, float64(age))
}

func (b *ProofOfBurn) selectRecord(previousHash string, at uint64) int {
	var total float64
	for _, r := range b.records {
		total += b.Power(r, at)
	}
	if total > 0 {
		draw := crypto.SeededRand(previousHash).Float64() * total
		var cumulative float64
		for i, r := range b.records {
			cumulative += b.Power(r, at)
			if cumulative >= draw {
				return i
			}
		}
	}
	return len(b.records) - 1
}

func burnProof(block *types.Block, txHash string, power float64) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, txHash, power)
}

// Execute runs the lottery at the block's index.
func (b *ProofOfBurn) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if len(b.records) == 0 {
		return nil, fmt.Errorf("%w: no burns recorded", types.ErrInsufficientResources)
	}

	idx := b.selectRecord(block.PreviousHash, block.Index)
	record := b.records[idx]
	power := b.Power(record, block.Index)

	nonce, err := crypto.HexPrefixUint(record.TxHash, burnNonceDigits)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed burn digest: %v", types.ErrInsufficientResources, err)
	}

	block.Hash = burnProof(block, record.TxHash, power)
	block.Nonce = nonce
	block.SetConsensusData("burn_tx", record.TxHash)
	block.SetConsensusData("burn_amount", formatUint(record.Amount))
	block.SetConsensusData("burn_power", formatFloat(power))

	proof := map[string]string{
		"algorithm_name": b.Name(),
		"burn_tx":        record.TxHash,
		"burn_amount":    formatUint(record.Amount),
		"burn_power":     formatFloat(power),
		"burn_address":   b.burnAddress,
		"total_burned":   formatUint(b.totalBurned()),
	}

	b.logger.Info("burn lottery won", zap.Uint64("index", block.Index), zap.String("tx_hash", record.TxHash))
	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(burnEnergyCost)), nil
}

func (b *ProofOfBurn) totalBurned() uint64 {
	var total uint64
	for _, r := range b.records {
		total += r.Amount
	}
	return total
}

// Validate finds the record whose digest starts with the nonce and re-derives the proof
// from that record's power at the block's index.
func (b *ProofOfBurn) Validate(block *types.Block) bool {
	prefix := fmt.Sprintf("%0*x", burnNonceDigits, block.Nonce)
	for _, r := range b.records {
		if !strings.HasPrefix(r.TxHash, prefix) {
			continue
		}
		if block.Hash == burnProof(block, r.TxHash, b.Power(r, block.Index)) {
			return true
		}
	}
	return false
}

// Name returns the algorithm name.
func (b *ProofOfBurn) Name() string { return "Proof of Burn" }

// EnergyEfficiency is fixed.
func (b *ProofOfBurn) EnergyEfficiency() (float64, bool) { return 0.90, true }

// Statistics returns burn counters.
func (b *ProofOfBurn) Statistics() map[string]string {
	return map[string]string{
		"burn_records":        fmt.Sprint(len(b.records)),
		"total_burned":        formatUint(b.totalBurned()),
		"minimum_burn_amount": formatUint(b.minimumBurn),
		"decay_factor":        formatFloat(b.decayFactor),
		"burn_address":        b.burnAddress,
	}
}

// NextDifficulty is not applicable.
func (b *ProofOfBurn) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts minimum_burn_amount (or burn_amount), decay_factor and burn_address.
func (b *ProofOfBurn) Configure(params types.Params) error {
	minimum, mok, err := params.Uint("minimum_burn_amount")
	if err != nil {
		return err
	}
	if !mok {
		if minimum, mok, err = params.Uint("burn_amount"); err != nil {
			return err
		}
	}
	decay, dok, err := params.Float("decay_factor")
	if err != nil {
		return err
	}
	if dok && (decay <= 0 || decay > 1) {
		return fmt.Errorf("%w: decay_factor %v out of range (0, 1]", types.ErrConfiguration, decay)
	}
	if mok {
		b.minimumBurn = minimum
	}
	if dok {
		b.decayFactor = decay
	}
	if addr, ok := params["burn_address"]; ok && addr != "" {
		b.burnAddress = addr
	}
	return nil
}
