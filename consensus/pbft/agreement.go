package pbft

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ahwlsqja/proofchain/crypto"
	"github.com/ahwlsqja/proofchain/types"
)

const pbftEnergyCost = 0.02

// Agreement runs a three-phase PBFT round among simulated nodes for every block.
type Agreement struct {
	config *Config
	nodes  []*Node

	view       uint64
	sequence   uint64
	primaryIdx int

	// append-only
	messages []Message
	stateLog *StateLog

	logger *zap.Logger
}

// New creates an agreement over config.NodeCount fresh nodes; node 0 is the first primary.
func New(config *Config, logger *zap.Logger) (*Agreement, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agreement{
		config:   config,
		nodes:    newNodes(config.NodeCount),
		stateLog: NewStateLog(config.WindowSize),
		logger:   logger.With(zap.String("component", "pbft")),
	}
	a.warnFaultTolerance()
	return a, nil
}

func (a *Agreement) warnFaultTolerance() {
	if a.config.FaultTolerance >= WarnFaultTolerance {
		a.logger.Warn("fault tolerance at or above one third, safety is not guaranteed",
			zap.Float64("fault_tolerance", a.config.FaultTolerance))
	}
}

// Nodes returns a copy of the node table.
func (a *Agreement) Nodes() []Node {
	out := make([]Node, len(a.nodes))
	for i, n := range a.nodes {
		out[i] = *n
	}
	return out
}

// Messages returns a copy of the message log.
func (a *Agreement) Messages() []Message {
	return append([]Message(nil), a.messages...)
}

// Sequence returns the next sequence number to be assigned.
func (a *Agreement) Sequence() uint64 { return a.sequence }

// StateLog exposes the per-sequence round states.
func (a *Agreement) StateLog() *StateLog { return a.stateLog }

func (a *Agreement) honestCount() int {
	n := 0
	for _, node := range a.nodes {
		if !node.IsFaulty {
			n++
		}
	}
	return n
}

// SetFaultyNodes replaces the faulty set. More than floor(n × fault_tolerance) indices is rejected
// and leaves the nodes unchanged. Out-of-range indices are ignored.
func (a *Agreement) SetFaultyNodes(indices []int) error {
	if limit := a.config.MaxFaulty(); len(indices) > limit {
		return fmt.Errorf("%w: %d faulty nodes exceeds maximum %d", types.ErrConfiguration, len(indices), limit)
	}
	for _, n := range a.nodes {
		n.IsFaulty = false
	}
	for _, i := range indices {
		if i < 0 || i >= len(a.nodes) {
			continue
		}
		a.nodes[i].IsFaulty = true
		a.nodes[i].Reputation = faultyReputation
	}
	a.logger.Info("faulty nodes updated", zap.Ints("indices", indices), zap.Int("honest", a.honestCount()))
	return nil
}

func (a *Agreement) record(msg *Message) {
	a.messages = append(a.messages, *msg)
}

// accepts reports whether msg is signed and belongs to the current view and round.
func (a *Agreement) accepts(msg *Message, state *State) bool {
	return msg.Verify() && msg.View == a.view && msg.SequenceNum == state.SequenceNum
}

// handlePrePrepare has the primary propose the candidate digest.
func (a *Agreement) handlePrePrepare(state *State, primary *Node, digest string, timestamp int64) {
	msg := NewMessage(PrePrepare, a.view, state.SequenceNum, digest, primary.ID, timestamp)
	a.record(msg)
	state.SetPrePrepare(msg)
}

// handlePrepare collects a prepare from every honest replica other than the primary.
func (a *Agreement) handlePrepare(state *State, primary *Node, timestamp int64) {
	for _, n := range a.nodes {
		if n.IsFaulty || n == primary {
			continue
		}
		msg := NewMessage(Prepare, a.view, state.SequenceNum, state.Digest, n.ID, timestamp)
		if !a.accepts(msg, state) {
			continue
		}
		if state.AddPrepare(msg) {
			a.record(msg)
		}
	}
}

// handleCommit collects a commit from every honest node, the primary included.
func (a *Agreement) handleCommit(state *State, timestamp int64) {
	for _, n := range a.nodes {
		if n.IsFaulty {
			continue
		}
		msg := NewMessage(Commit, a.view, state.SequenceNum, state.Digest, n.ID, timestamp)
		if !a.accepts(msg, state) {
			continue
		}
		if state.AddCommit(msg) {
			a.record(msg)
		}
	}
}

func agreementHash(block *types.Block, view, seq uint64, honest int) string {
	return crypto.HashParts(block.Index, block.Timestamp, block.Data, block.PreviousHash, view, seq, honest)
}

// Execute runs pre-prepare, prepare and commit for the block at the next sequence number.
func (a *Agreement) Execute(block *types.Block) (*types.ConsensusResult, error) {
	start := time.Now()
	if len(a.nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", types.ErrInsufficientResources)
	}

	total := len(a.nodes)
	honest := a.honestCount()
	if required := total*2/3 + 1; honest < required {
		return nil, fmt.Errorf("%w: %d honest nodes, %d required", types.ErrInsufficientResources, honest, required)
	}

	seq := a.sequence
	if !a.stateLog.IsInWindow(seq) {
		return nil, fmt.Errorf("%w: sequence %d outside window [%d, %d)", types.ErrConsensusNotReached, seq, a.stateLog.LowWaterMark, a.stateLog.HighWaterMark)
	}

	primary := a.primary()
	if primary == nil {
		return nil, fmt.Errorf("%w: primary %s is faulty", types.ErrConsensusNotReached, a.PrimaryID())
	}

	quorum := honest*2/3 + 1
	before := len(a.messages)
	state := a.stateLog.NewRound(a.view, seq)

	a.handlePrePrepare(state, primary, block.BasicHash(), block.Timestamp)

	a.handlePrepare(state, primary, block.Timestamp)
	if !state.IsPrepared(quorum - 1) {
		return nil, fmt.Errorf("%w: %d prepares, %d required", types.ErrConsensusNotReached, state.PrepareCount(), quorum-1)
	}
	state.TransitionToPrepared()

	a.handleCommit(state, block.Timestamp)
	if !state.IsCommitted(quorum) {
		return nil, fmt.Errorf("%w: %d commits, %d required", types.ErrConsensusNotReached, state.CommitCount(), quorum)
	}
	state.TransitionToCommitted()
	state.MarkExecuted()

	view := a.view
	block.Hash = agreementHash(block, view, seq, honest)
	block.Nonce = seq
	block.SetConsensusData("view", formatUint(view))
	block.SetConsensusData("sequence", formatUint(seq))
	block.SetConsensusData("primary", primary.ID)

	faulty := total - honest
	proof := map[string]string{
		"algorithm_name":     a.Name(),
		"consensus_view":     formatUint(view),
		"sequence_number":    formatUint(seq),
		"total_nodes":        strconv.Itoa(total),
		"honest_nodes":       strconv.Itoa(honest),
		"faulty_nodes":       strconv.Itoa(faulty),
		"fault_percentage":   fmt.Sprintf("%.2f", float64(faulty)/float64(total)*100),
		"messages_processed": strconv.Itoa(len(a.messages) - before),
		"primary_node":       primary.ID,
	}

	a.logger.Info("block committed",
		zap.Uint64("index", block.Index),
		zap.Uint64("view", view),
		zap.Uint64("sequence", seq),
		zap.Int("prepares", state.PrepareCount()),
		zap.Int("commits", state.CommitCount()),
	)

	a.sequence++
	if a.sequence%a.config.CheckpointInterval == 0 {
		a.stateLog.AdvanceWatermarks(a.sequence)
	}
	if a.sequence%a.config.RotationInterval == 0 {
		a.RotatePrimary()
	}

	return types.NewConsensusResult(block, proof, time.Since(start), types.Float(pbftEnergyCost)), nil
}

// Validate recomputes the digest with the current view and honest count.
// A zero nonce is rejected once more than one sequence has been assigned.
func (a *Agreement) Validate(block *types.Block) bool {
	if block.Nonce == 0 && a.sequence > 1 {
		return false
	}
	return block.Hash == agreementHash(block, a.view, block.Nonce, a.honestCount())
}

// Name returns the algorithm name.
func (a *Agreement) Name() string { return "Practical Byzantine Fault Tolerance" }

// EnergyEfficiency is fixed.
func (a *Agreement) EnergyEfficiency() (float64, bool) { return 0.80, true }

// Statistics returns view, sequence and node counters.
func (a *Agreement) Statistics() map[string]string {
	honest := a.honestCount()
	return map[string]string{
		"view":            formatUint(a.view),
		"sequence":        formatUint(a.sequence),
		"total_nodes":     strconv.Itoa(len(a.nodes)),
		"honest_nodes":    strconv.Itoa(honest),
		"faulty_nodes":    strconv.Itoa(len(a.nodes) - honest),
		"fault_tolerance": strconv.FormatFloat(a.config.FaultTolerance, 'f', -1, 64),
		"primary_node":    a.PrimaryID(),
		"messages_logged": strconv.Itoa(len(a.messages)),
		"low_watermark":   formatUint(a.stateLog.LowWaterMark),
	}
}

// NextDifficulty is not applicable.
func (a *Agreement) NextDifficulty([]types.Block) (int, bool) { return 0, false }

// Configure accepts node_count (rebuilding the nodes) and fault_tolerance.
func (a *Agreement) Configure(params types.Params) error {
	next := *a.config
	count, cok, err := params.Int("node_count")
	if err != nil {
		return err
	}
	ft, fok, err := params.Float("fault_tolerance")
	if err != nil {
		return err
	}
	if cok {
		next.NodeCount = count
	}
	if fok {
		next.FaultTolerance = ft
	}
	if err := next.Validate(); err != nil {
		return err
	}

	a.config = &next
	if cok {
		a.nodes = newNodes(count)
		a.view = 0
		a.primaryIdx = 0
	}
	if fok {
		a.warnFaultTolerance()
	}
	return nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
