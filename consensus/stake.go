package consensus

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	defaultSlashingRate = 0.1
	stakeEnergyCost     = 0.001
)

// Validator is a stake holder eligible for selection.
type Validator struct {
	Address      string  `json:"address"`
	Stake        uint64  `json:"stake"`
	Reputation   float64 `json:"reputation"`
	BlocksMined  uint64  `json:"blocks_mined"`
	LastActivity int64   `json:"last_activity"`
}

func (v *Validator) weight() float64 {
	return float64(v.Stake) * v.Reputation
}

// ProofOfStake selects a validator with probability proportional to stake × reputation,
// using a generator seeded from the previous block's hash.
type ProofOfStake struct {
	validators   []*Validator
	minimumStake uint64
	slashingRate float64
	logger       *zap.Logger
}

// NewProofOfStake creates an empty ProofOfStake instance.
func NewProofOfStake(minimumStake uint64, logger *zap.Logger) *ProofOfStake {
	return &ProofOfStake{
		minimumStake: minimumStake,
		slashingRate: defaultSlashingRate,
		logger:       named(logger, "stake"),
	}
}

// AddValidator registers a validator. Stakes below the minimum are rejected.
func (s *ProofOfStake) AddValidator(address string, stake uint64) error {
	if stake < s.minimumStake {
		return fmt.Errorf("%w: stake %d below minimum %d", types.ErrConfiguration, stake, s.minimumStake)
	}
	s.validators = append(s.validators, &Validator{
		Address:      address,
		Stake:        stake,
		Reputation:   1.0,
		LastActivity: time.Now().Unix(),
	})
	s.logger.Info("validator added", zap.String("address", address), zap.Uint64("stake", stake))
	return nil
}

// Validators returns a copy of the validator list.
func (s *ProofOfStake) Validators() []Validator {
	out := make([]Validator, len(s.validators))
	for i, v := range s.validators {
		out[i] = *v
	}
	return out
}

// Slash removes the slashing rate from a validator's stake and halves its reputation.
func (s *ProofOfStake) Slash(address string) error {
	v := s.find(address)
	if v == nil {
		return fmt.Errorf("%w: unknown validator %s", types.ErrConfiguration, address)
	}
	penalty := uint64(float64(v.Stake) * s.slashingRate)
	v.Stake -= penalty
	v.Reputation /= 2
	s.logger.Warn("validator slashed",
		zap.String("address", address),
		zap.Uint64("penalty", penalty),
		zap.Float64("reputation", v.Reputation),
	)
	return nil
}

func (s *ProofOfStake) find(address string) *Validator {
	for _, v := range s.validators {
		if v.Address == address {
			return v
		}
	}
	return nil
}

func (s *ProofOfStake) totalWeight() float64 {
	var total float64
	for _, v := range s.validators {
		total += v.weight()
	}
	return total
}

// selectValidator walks the cumulative weights until they cover the draw.
// The last validator absorbs floating point slack.
func (s *ProofOfStake) selectValidator(previousHash string) *Validator {
	total := s.totalWeight()
	if total <= 0 {
		return nil
	}
	draw := crypto.SeededRand(previousHash).Float64() * total

	var cumulative float64
	for _, v := range s.validators {
		cumulative += v.weight()
		if cumulative >= draw {
			return v
		}
	}
	return s.validators[len(s.validators)-1]
}

func stakeSignature(block *types.Block, v *Validator) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, v.Address, v.Stake)
}

// Execute selects a validator and signs the block on its behalf.
func (s *ProofOfStake) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if len(s.validators) == 0 {
		return nil, fmt.Errorf("%w: no validators registered", types.ErrInsufficientResources)
	}
	v := s.selectValidator(block.PreviousHash)
	if v == nil {
		return nil, fmt.Errorf("%w: total stake weight is zero", types.ErrInsufficientResources)
	}

	block.Hash = stakeSignature(block, v)
	block.Nonce = v.Stake
	block.SetConsensusData("validator", v.Address)
	block.SetConsensusData("stake", formatUint(v.Stake))

	reward := float64(max(v.Stake/1000, 1)) * v.Reputation
	v.BlocksMined++
	v.LastActivity = time.Now().Unix()

	proof := map[string]string{
		"algorithm_name":       s.Name(),
		"selected_validator":   v.Address,
		"validator_stake":      formatUint(v.Stake),
		"validator_reputation": formatFloat(v.Reputation),
		"total_stake":          formatUint(s.totalStake()),
		"validator_count":      fmt.Sprint(len(s.validators)),
		"reward":               formatFloat(reward),
	}

	s.logger.Info("block forged", zap.Uint64("index", block.Index), zap.String("validator", v.Address))
	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(stakeEnergyCost)), nil
}

func (s *ProofOfStake) totalStake() uint64 {
	var total uint64
	for _, v := range s.validators {
		total += v.Stake
	}
	return total
}

// Validate looks up the first validator whose stake equals the nonce and re-derives the signature.
func (s *ProofOfStake) Validate(block *types.Block) bool {
	for _, v := range s.validators {
		if v.Stake == block.Nonce {
			return block.Hash == stakeSignature(block, v)
		}
	}
	return false
}

// Name returns the algorithm name.
func (s *ProofOfStake) Name() string { return "Proof of Stake" }

// EnergyEfficiency is fixed.
func (s *ProofOfStake) EnergyEfficiency() (float64, bool) { return 0.99, true }

// Statistics returns validator set counters.
func (s *ProofOfStake) Statistics() map[string]string {
	return map[string]string{
		"validator_count": fmt.Sprint(len(s.validators)),
		"total_stake":     formatUint(s.totalStake()),
		"minimum_stake":   formatUint(s.minimumStake),
		"slashing_rate":   formatFloat(s.slashingRate),
	}
}

// NextDifficulty is not applicable.
func (s *ProofOfStake) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts minimum_stake and slashing_rate.
func (s *ProofOfStake) Configure(params types.Params) error {
	minimum, mok, err := params.Uint("minimum_stake")
	if err != nil {
		return err
	}
	rate, rok, err := params.Float("slashing_rate")
	if err != nil {
		return err
	}
	if rok && (rate < 0 || rate > 1) {
		return fmt.Errorf("%w: slashing_rate %v out of range [0, 1]", types.ErrConfiguration, rate)
	}
	if mok {
		s.minimumStake = minimum
	}
	if rok {
		s.slashingRate = rate
	}
	return nil
}
