package consensus

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const (
	minWaitMultiplier = 0.5
	maxWaitMultiplier = 2.0
	elapsedEnergyCost = 0.001
)

// ProofOfElapsedTime derives a deterministic wait from a certificate seed, waits it out,
// and stamps the block with the certificate and an attestation.
type ProofOfElapsedTime struct {
	baseWait         time.Duration
	nodeID           string
	trustedExecution bool
	simulate         bool
	sleep            func(time.Duration)
	now              func() time.Time
	logger           *zap.Logger

	blocks    uint64
	totalWait time.Duration
}

// NewProofOfElapsedTime creates an instance. An empty nodeID gets a generated one.
// With simulate set the wait is computed but not slept.
func NewProofOfElapsedTime(baseWait time.Duration, nodeID string, simulate bool, logger *zap.Logger) (*ProofOfElapsedTime, error) {
	if baseWait <= 0 {
		return nil, fmt.Errorf("%w: base wait must be positive", types.ErrConfiguration)
	}
	if nodeID == "" {
		nodeID = GenerateNodeID()
	}
	return &ProofOfElapsedTime{
		baseWait:         baseWait,
		nodeID:           nodeID,
		trustedExecution: true,
		simulate:         simulate,
		sleep:            time.Sleep,
		now:              time.Now,
		logger:           named(logger, "elapsed-time"),
	}, nil
}

// GenerateNodeID returns a fresh "node_xxxxxxxx" identifier.
func GenerateNodeID() string {
	return "node_" + uuid.NewString()[:8]
}

// NodeID returns the identifier baked into certificates.
func (e *ProofOfElapsedTime) NodeID() string { return e.nodeID }

// WaitBounds returns the inclusive range any derived wait (in ms) falls into.
func (e *ProofOfElapsedTime) WaitBounds() (uint64, uint64) {
	base := float64(e.baseWait.Milliseconds())
	return uint64(base * minWaitMultiplier), uint64(base * maxWaitMultiplier)
}

func (e *ProofOfElapsedTime) certificate(block *types.Block) string {
	return crypto.HashParts(block.PreviousHash, e.nodeID, block.Index)
}

// waitFor maps the certificate onto a multiplier in [0.5, 2.0) of the base wait.
func (e *ProofOfElapsedTime) waitFor(certificate string) time.Duration {
	r := crypto.SeededRand(certificate)
	multiplier := minWaitMultiplier + r.Float64()*(maxWaitMultiplier-minWaitMultiplier)
	ms := uint64(float64(e.baseWait.Milliseconds()) * multiplier)
	return time.Duration(ms) * time.Millisecond
}

// Execute waits the derived duration and attests to it.
func (e *ProofOfElapsedTime) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if !e.trustedExecution {
		return nil, fmt.Errorf("%w: trusted execution environment unavailable", types.ErrInsufficientResources)
	}

	certificate := e.certificate(block)
	wait := e.waitFor(certificate)
	if !e.simulate {
		e.sleep(wait)
	}
	waitMs := uint64(wait.Milliseconds())

	attestation := crypto.HashParts(e.nodeID, waitMs, e.now().Unix())
	block.Hash = crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, certificate, attestation, e.nodeID)
	block.Nonce = waitMs
	block.SetConsensusData("node_id", e.nodeID)
	block.SetConsensusData("wait_time_ms", formatUint(waitMs))
	block.SetConsensusData("certificate", certificate)
	block.SetConsensusData("attestation", attestation)

	e.blocks++
	e.totalWait += wait

	proof := map[string]string{
		"algorithm_name":    e.Name(),
		"node_id":           e.nodeID,
		"wait_time_ms":      formatUint(waitMs),
		"certificate":       certificate,
		"attestation":       attestation,
		"trusted_execution": strconv.FormatBool(e.trustedExecution),
	}

	e.logger.Info("wait certificate redeemed", zap.Uint64("index", block.Index), zap.Uint64("wait_ms", waitMs))
	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(elapsedEnergyCost)), nil
}

// Validate only checks the nonce lies within the wait bounds and the hash is digest-shaped.
func (e *ProofOfElapsedTime) Validate(block *types.Block) bool {
	lo, hi := e.WaitBounds()
	return block.Nonce >= lo && block.Nonce <= hi && len(block.Hash) == crypto.DigestLength
}

// Name returns the algorithm name.
func (e *ProofOfElapsedTime) Name() string { return "Proof of Elapsed Time" }

// EnergyEfficiency is fixed.
func (e *ProofOfElapsedTime) EnergyEfficiency() (float64, bool) { return 0.98, true }

// Statistics returns wait counters.
func (e *ProofOfElapsedTime) Statistics() map[string]string {
	avg := time.Duration(0)
	if e.blocks > 0 {
		avg = e.totalWait / time.Duration(e.blocks)
	}
	return map[string]string{
		"node_id":           e.nodeID,
		"base_wait_ms":      fmt.Sprint(e.baseWait.Milliseconds()),
		"blocks":            formatUint(e.blocks),
		"average_wait_ms":   fmt.Sprint(avg.Milliseconds()),
		"trusted_execution": strconv.FormatBool(e.trustedExecution),
	}
}

// NextDifficulty is not applicable.
func (e *ProofOfElapsedTime) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts base_wait_ms, node_id and trusted_execution.
func (e *ProofOfElapsedTime) Configure(params types.Params) error {
	base, bok, err := params.Uint("base_wait_ms")
	if err != nil {
		return err
	}
	if bok && base == 0 {
		return fmt.Errorf("%w: base_wait_ms must be positive", types.ErrConfiguration)
	}
	trusted, tok, err := params.Bool("trusted_execution")
	if err != nil {
		return err
	}
	if bok {
		e.baseWait = time.Duration(base) * time.Millisecond
	}
	if tok {
		e.trustedExecution = trusted
	}
	if id, ok := params["node_id"]; ok && id != "" {
		e.nodeID = id
	}
	return nil
}
