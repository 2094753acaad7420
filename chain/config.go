// Package chain provides the engine that owns the active algorithm and the block list.
package chain

import (
	"time"
)

// Config holds configuration for an Engine.
type Config struct {
	// 제네시스 블록
	GenesisData         string // "Genesis Block"
	GenesisPreviousHash string // "0"

	// 벤치마크 블록의 이전 해시
	BenchmarkPreviousHash string

	// 블록 타임스탬프 시계
	Now func() time.Time
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		GenesisData:           "Genesis Block",
		GenesisPreviousHash:   "0",
		BenchmarkPreviousHash: "test_hash",
		Now:                   time.Now,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.GenesisPreviousHash == "" {
		return ErrEmptyGenesisPreviousHash
	}
	if c.BenchmarkPreviousHash == "" {
		return ErrEmptyBenchmarkPreviousHash
	}
	if c.Now == nil {
		return ErrNilClock
	}
	return nil
}

// Custom errors
type configError string

func (e configError) Error() string {
	return string(e)
}

const (
	ErrEmptyGenesisPreviousHash   = configError("genesis previous hash is required")
	ErrEmptyBenchmarkPreviousHash = configError("benchmark previous hash is required")
	ErrNilClock                   = configError("clock is required")
)
