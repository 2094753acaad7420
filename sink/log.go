package sink

import (
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/types"
)

// LogSink writes events as structured log entries.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink. A nil logger discards output.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "sink"))}
}

func (s *LogSink) BlockCreated(block *types.Block) {
	s.logger.Info("block created",
		zap.Uint64("index", block.Index),
		zap.String("hash", block.Hash),
		zap.String("previous_hash", block.PreviousHash),
		zap.Uint64("nonce", block.Nonce),
		zap.Int("difficulty", block.Difficulty),
	)
}

func (s *LogSink) MiningStarted(index uint64, difficulty int) {
	s.logger.Debug("mining started", zap.Uint64("index", index), zap.Int("difficulty", difficulty))
}

func (s *LogSink) MiningCompleted(block *types.Block, elapsed time.Duration) {
	s.logger.Info("mining completed",
		zap.Uint64("index", block.Index),
		zap.Duration("elapsed", elapsed),
		zap.Uint64("nonce", block.Nonce),
	)
}

func (s *LogSink) ValidationResult(valid bool) {
	if valid {
		s.logger.Info("chain validation passed")
		return
	}
	s.logger.Warn("chain validation failed")
}
