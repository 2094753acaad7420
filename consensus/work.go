package consensus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	// DefaultTargetBlockTime is the block interval ProofOfWork steers its difficulty toward.
	DefaultTargetBlockTime = 60 * time.Second

	// retargetWindow is how many trailing blocks NextDifficulty averages over.
	retargetWindow = 10

	progressInterval = 1_000_000
	workEnergyPerTry = 0.0001
)

// ProofOfWork finalizes blocks by brute-force search for a nonce whose digest has
// `difficulty` leading zero characters.
type ProofOfWork struct {
	difficulty int
	targetTime time.Duration
	logger     *zap.Logger

	blocksMined   uint64
	totalAttempts uint64
}

// NewProofOfWork creates a ProofOfWork instance.
func NewProofOfWork(difficulty int, logger *zap.Logger) (*ProofOfWork, error) {
	if err := checkDifficulty(difficulty); err != nil {
		return nil, err
	}
	return &ProofOfWork{
		difficulty: difficulty,
		targetTime: DefaultTargetBlockTime,
		logger:     named(logger, "work"),
	}, nil
}

func checkDifficulty(d int) error {
	if d < 0 || d > crypto.DigestLength {
		return fmt.Errorf("%w: difficulty %d out of range [0, %d]", types.ErrConfiguration, d, crypto.DigestLength)
	}
	return nil
}

// Difficulty returns the current difficulty.
func (w *ProofOfWork) Difficulty() int { return w.difficulty }

// Execute searches nonces from zero upward. It does not return until a match is found.
func (w *ProofOfWork) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	block.Difficulty = w.difficulty

	var nonce uint64
	for {
		block.Nonce = nonce
		hash := block.BasicHash()
		if crypto.HasLeadingZeros(hash, w.difficulty) {
			block.Hash = hash
			break
		}
		nonce++
		if nonce%progressInterval == 0 {
			w.logger.Debug("mining in progress",
				zap.Uint64("index", block.Index),
				zap.Uint64("attempts", nonce),
			)
		}
	}

	elapsed := time.Since(start)
	attempts := nonce + 1
	w.blocksMined++
	w.totalAttempts += attempts

	hashRate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		hashRate = float64(attempts) / secs
	}

	block.SetConsensusData("nonce", formatUint(nonce))
	block.SetConsensusData("difficulty", strconv.Itoa(w.difficulty))

	proof := map[string]string{
		"algorithm_name": w.Name(),
		"nonce":          formatUint(nonce),
		"difficulty":     strconv.Itoa(w.difficulty),
		"target":         strings.Repeat("0", w.difficulty),
		"attempts":       formatUint(attempts),
		"hash_rate":      fmt.Sprintf("%.2f", hashRate),
	}

	w.logger.Info("block mined",
		zap.Uint64("index", block.Index),
		zap.Uint64("nonce", nonce),
		zap.Duration("elapsed", elapsed),
	)

	return types.NewConsensusResult(block, proof, elapsed, types.Float(float64(nonce)*workEnergyPerTry)), nil
}

// Validate recomputes the digest with the current difficulty.
func (w *ProofOfWork) Validate(block *types.Block) bool {
	expected := crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, block.Nonce, w.difficulty)
	return block.Hash == expected && crypto.HasLeadingZeros(block.Hash, w.difficulty)
}

// Name returns the algorithm name.
func (w *ProofOfWork) Name() string { return "Proof of Work" }

// EnergyEfficiency falls with the square of the difficulty.
func (w *ProofOfWork) EnergyEfficiency() (float64, bool) {
	if w.difficulty == 0 {
		return 1.0, true
	}
	d := float64(w.difficulty)
	return 1.0 / (d * d), true
}

// Statistics returns a snapshot of the mining counters.
func (w *ProofOfWork) Statistics() map[string]string {
	return map[string]string{
		"difficulty":          strconv.Itoa(w.difficulty),
		"target_time_seconds": strconv.FormatInt(int64(w.targetTime/time.Second), 10),
		"blocks_mined":        formatUint(w.blocksMined),
		"total_attempts":      formatUint(w.totalAttempts),
	}
}

// NextDifficulty averages the interval over the trailing window of blocks.
// Faster than half the target raises difficulty, slower than twice the target lowers it (floor 1).
func (w *ProofOfWork) NextDifficulty(history []types.Block) (int, bool) {
	if len(history) < 2 {
		return w.difficulty, true
	}
	window := history
	if len(window) > retargetWindow {
		window = window[len(window)-retargetWindow:]
	}

	span := window[len(window)-1].Timestamp - window[0].Timestamp
	avg := span / int64(len(window)-1)
	target := int64(w.targetTime / time.Second)

	switch {
	case avg < target/2:
		return w.difficulty + 1, true
	case avg > target*2:
		return max(w.difficulty-1, 0), true
	default:
		return w.difficulty, true
	}
}

// Configure accepts difficulty and target_time_seconds.
func (w *ProofOfWork) Configure(params types.Params) error {
	d, ok, err := params.Int("difficulty")
	if err != nil {
		return err
	}
	if ok {
		if err := checkDifficulty(d); err != nil {
			return err
		}
	}
	target, tok, err := params.Uint("target_time_seconds")
	if err != nil {
		return err
	}
	if tok && target == 0 {
		return fmt.Errorf("%w: target_time_seconds must be positive", types.ErrConfiguration)
	}

	if ok {
		w.difficulty = d
	}
	if tok {
		w.targetTime = time.Duration(target) * time.Second
	}
	return nil
}
