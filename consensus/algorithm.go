// Package consensus defines the contract shared by every finalization algorithm,
// the closed set of algorithm kinds and the factory that builds them.
package consensus

import (
	"strconv"

	"github.com/ahwlsqja/proofchain/types"
)

// Algorithm finalizes blocks and re-verifies them.
//
// Execute mutates the block in place (hash, nonce, metadata) and returns a snapshot
// of the finalized block. Validate must not change observable state.
type Algorithm interface {
	Execute(block *types.Block) (*types.ConsensusResult, error)
	Validate(block *types.Block) bool
	Name() string
	EnergyEfficiency() (float64, bool)
	Statistics() map[string]string
	NextDifficulty(history []types.Block) (int, bool)
	Configure(params types.Params) error
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
