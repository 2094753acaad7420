// Package pbft provides PBFT consensus configuration.
package pbft

import (
	"fmt"

	"github.com/ahwlsqja/proofchain/types"
)

// WarnFaultTolerance is the fraction above which a BFT cluster can no longer guarantee safety.
const WarnFaultTolerance = 0.33

// PBFT 시뮬레이션 설정 구조체
type Config struct {
	// 시뮬레이션 노드 수
	NodeCount int

	// 허용 결함 비율 [0, 1)
	FaultTolerance float64

	// 체크포인트 주기 (100 시퀸스마다)
	CheckpointInterval uint64

	// 윈도우 크기 (200)
	WindowSize uint64

	// 프라이머리 교체 주기 (10 시퀸스마다)
	RotationInterval uint64
}

// DefaultConfig returns a configuration for nodeCount nodes tolerating the given fault fraction.
func DefaultConfig(nodeCount int, faultTolerance float64) *Config {
	return &Config{
		NodeCount:          nodeCount,
		FaultTolerance:     faultTolerance,
		CheckpointInterval: 100,
		WindowSize:         200,
		RotationInterval:   10,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NodeCount < 1 {
		return fmt.Errorf("%w: node_count must be at least 1, got %d", types.ErrConfiguration, c.NodeCount)
	}
	if c.FaultTolerance < 0 || c.FaultTolerance >= 1 {
		return fmt.Errorf("%w: fault_tolerance %v out of range [0, 1)", types.ErrConfiguration, c.FaultTolerance)
	}
	if c.CheckpointInterval == 0 || c.WindowSize == 0 || c.RotationInterval == 0 {
		return fmt.Errorf("%w: checkpoint interval, window size and rotation interval must be positive", types.ErrConfiguration)
	}
	if c.WindowSize < c.CheckpointInterval {
		return fmt.Errorf("%w: window size %d smaller than checkpoint interval %d", types.ErrConfiguration, c.WindowSize, c.CheckpointInterval)
	}
	return nil
}

// MaxFaulty is floor(NodeCount × FaultTolerance).
func (c *Config) MaxFaulty() int {
	return int(float64(c.NodeCount) * c.FaultTolerance)
}
