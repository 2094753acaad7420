package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ahwlsqja/proofchain/types"
)

// Files written under the sink directory.
const (
	BlockCreationLog = "block_creation.log"
	MiningLog        = "mining.log"
	ValidationLog    = "validation.log"
	SummaryReport    = "summary_report.json"
	blocksDir        = "blocks"
)

// ================================================================================
//                          File-based Sink 구현
// ================================================================================

// FileSink는 이벤트를 JSON 라인으로 기록하고 블록을 개별 파일로 저장함
type FileSink struct {
	mu      sync.Mutex
	baseDir string
	logger  *zap.Logger

	blockLog      io.WriteCloser
	miningLog     io.WriteCloser
	validationLog io.WriteCloser
}

// NewFileSink creates the directory layout and opens rotating event logs.
func NewFileSink(baseDir string, logger *zap.Logger) (*FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{baseDir, filepath.Join(baseDir, blocksDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	open := func(name string) io.WriteCloser {
		return &lumberjack.Logger{
			Filename:   filepath.Join(baseDir, name),
			MaxSize:    50, // megabytes
			MaxBackups: 3,
		}
	}

	return &FileSink{
		baseDir:       baseDir,
		logger:        logger.With(zap.String("component", "file-sink")),
		blockLog:      open(BlockCreationLog),
		miningLog:     open(MiningLog),
		validationLog: open(ValidationLog),
	}, nil
}

// Dir returns the sink's base directory.
func (fs *FileSink) Dir() string { return fs.baseDir }

type event struct {
	Timestamp time.Time   `json:"timestamp"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
}

func (fs *FileSink) append(w io.Writer, name string, data interface{}) {
	line, err := json.Marshal(event{Timestamp: time.Now().UTC(), Event: name, Data: data})
	if err != nil {
		fs.logger.Error("failed to marshal event", zap.String("event", name), zap.Error(err))
		return
	}
	line = append(line, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := w.Write(line); err != nil {
		fs.logger.Error("failed to write event", zap.String("event", name), zap.Error(err))
	}
}

// ================================================================================
//                          이벤트 기록
// ================================================================================

func (fs *FileSink) BlockCreated(block *types.Block) {
	fs.append(fs.blockLog, "block_created", block)
	if err := fs.SaveBlock(block); err != nil {
		fs.logger.Error("failed to save block", zap.Uint64("index", block.Index), zap.Error(err))
	}
}

func (fs *FileSink) MiningStarted(index uint64, difficulty int) {
	fs.append(fs.miningLog, "mining_started", map[string]interface{}{
		"index":      index,
		"difficulty": difficulty,
	})
}

func (fs *FileSink) MiningCompleted(block *types.Block, elapsed time.Duration) {
	fs.append(fs.miningLog, "mining_completed", map[string]interface{}{
		"index":      block.Index,
		"hash":       block.Hash,
		"nonce":      block.Nonce,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (fs *FileSink) ValidationResult(valid bool) {
	fs.append(fs.validationLog, "validation_result", map[string]bool{"valid": valid})
}

// ================================================================================
//                          블록 저장/로드
// ================================================================================

func (fs *FileSink) blockPath(index uint64) string {
	return filepath.Join(fs.baseDir, blocksDir, fmt.Sprintf("block_%d.json", index))
}

// SaveBlock saves a block to disk.
func (fs *FileSink) SaveBlock(block *types.Block) error {
	if block == nil {
		return fmt.Errorf("block is nil")
	}

	data, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.WriteFile(fs.blockPath(block.Index), data, 0644); err != nil {
		return fmt.Errorf("failed to write block file: %w", err)
	}
	return nil
}

// LoadBlock loads a block from disk. A missing block returns nil, nil.
func (fs *FileSink) LoadBlock(index uint64) (*types.Block, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.blockPath(index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // 블록이 없으면 nil 반환
		}
		return nil, fmt.Errorf("failed to read block file: %w", err)
	}

	var block types.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &block, nil
}

// WriteSummary writes the summary report, replacing any previous one.
func (fs *FileSink) WriteSummary(summary types.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.WriteFile(filepath.Join(fs.baseDir, SummaryReport), data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Close closes the event logs.
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var firstErr error
	for _, w := range []io.WriteCloser{fs.blockLog, fs.miningLog, fs.validationLog} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
