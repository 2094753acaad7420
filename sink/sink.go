// Package sink receives engine events for logging and reporting.
package sink

import (
	"time"

	"github.com/ahwlsqja/proofchain/types"
)

// Sink consumes engine events. Implementations must not fail the engine;
// nothing they return is observed.
type Sink interface {
	BlockCreated(block *types.Block)
	MiningStarted(index uint64, difficulty int)
	MiningCompleted(block *types.Block, elapsed time.Duration)
	ValidationResult(valid bool)
}

// Nop discards every event.
type Nop struct{}

func (Nop) BlockCreated(*types.Block)                   {}
func (Nop) MiningStarted(uint64, int)                   {}
func (Nop) MiningCompleted(*types.Block, time.Duration) {}
func (Nop) ValidationResult(bool)                       {}
