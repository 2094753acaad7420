package types

import "errors"

// Error kinds surfaced by algorithms and the engine. Callers match them with errors.Is.
var (
	ErrConfiguration         = errors.New("invalid configuration")
	ErrNoActiveAlgorithm     = errors.New("no consensus algorithm configured")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrConsensusNotReached   = errors.New("consensus not reached")
)
