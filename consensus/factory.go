package consensus

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/consensus/pbft"
	"github.com/ahwlsqja/proofchain/types"
)

var (
	_ Algorithm = (*ProofOfWork)(nil)
	_ Algorithm = (*ProofOfStake)(nil)
	_ Algorithm = (*ProofOfHistory)(nil)
	_ Algorithm = (*ProofOfAuthority)(nil)
	_ Algorithm = (*ProofOfElapsedTime)(nil)
	_ Algorithm = (*ProofOfBurn)(nil)
	_ Algorithm = (*ProofOfCapacity)(nil)
	_ Algorithm = (*pbft.Agreement)(nil)
)

// New builds a fresh algorithm instance for kind, loading any seed entries the kind carries.
func New(kind Kind, logger *zap.Logger) (Algorithm, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch k := kind.(type) {
	case Work:
		w, err := NewProofOfWork(k.Difficulty, logger)
		if err != nil {
			return nil, err
		}
		return w, nil

	case Stake:
		s := NewProofOfStake(k.MinimumStake, logger)
		for _, v := range k.Validators {
			if err := s.AddValidator(v.Address, v.Stake); err != nil {
				return nil, err
			}
		}
		return s, nil

	case History:
		h, err := NewProofOfHistory(k.VDFIterations, logger)
		if err != nil {
			return nil, err
		}
		return h, nil

	case Authority:
		a, err := NewProofOfAuthority(k.Validators, logger)
		if err != nil {
			return nil, err
		}
		return a, nil

	case ElapsedTime:
		e, err := NewProofOfElapsedTime(time.Duration(k.BaseWaitMs)*time.Millisecond, k.NodeID, k.SimulateWait, logger)
		if err != nil {
			return nil, err
		}
		return e, nil

	case Burn:
		b := NewProofOfBurn(k.MinimumBurnAmount, logger)
		for _, seed := range k.Burns {
			if _, err := b.AddBurn(seed.Amount, seed.Timestamp); err != nil {
				return nil, err
			}
		}
		return b, nil

	case Capacity:
		c := NewProofOfCapacity(k.StorageRequirementGB, logger)
		for _, seed := range k.Plots {
			if _, err := c.CreatePlot(seed.SizeGB, seed.NonceCount); err != nil {
				return nil, err
			}
		}
		return c, nil

	case Byzantine:
		a, err := pbft.New(pbft.DefaultConfig(k.NodeCount, k.FaultTolerance), logger)
		if err != nil {
			return nil, err
		}
		return a, nil

	case nil:
		return nil, fmt.Errorf("%w: algorithm kind is nil", types.ErrConfiguration)
	}

	return nil, fmt.Errorf("%w: unsupported algorithm kind %T", types.ErrConfiguration, kind)
}
