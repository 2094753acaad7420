package pbft

import (
	"sync"
)

// Phase represents the current phase of PBFT consensus.
type Phase int

const (
	// Idle - waiting for a pre-prepare.
	Idle Phase = iota
	// PrePrepared - received pre-prepare, collecting prepares.
	PrePrepared
	// Prepared - enough prepares, collecting commits.
	Prepared
	// Committed - enough commits, block is final.
	Committed
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case PrePrepared:
		return "PRE-PREPARED"
	case Prepared:
		return "PREPARED"
	case Committed:
		return "COMMITTED"
	default:
		return "UNKNOWN"
	}
}

// State represents the consensus state for a specific sequence number.
type State struct {
	mu sync.RWMutex

	View        uint64
	SequenceNum uint64
	Phase       Phase

	// 후보 블록 다이제스트
	Digest string

	PrePrepareMsg *Message

	// Prepare messages received (nodeID -> Message)
	PrepareMsgs map[string]*Message

	// Commit messages received (nodeID -> Message)
	CommitMsgs map[string]*Message

	Executed bool
}

// NewState creates a new consensus state.
func NewState(view, seqNum uint64) *State {
	return &State{
		View:        view,
		SequenceNum: seqNum,
		Phase:       Idle,
		PrepareMsgs: make(map[string]*Message),
		CommitMsgs:  make(map[string]*Message),
	}
}

// SetPrePrepare stores the primary's proposal and transitions to PrePrepared.
func (s *State) SetPrePrepare(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PrePrepareMsg = msg
	s.Digest = msg.Digest
	s.Phase = PrePrepared
}

// AddPrepare adds a prepare message. Messages for another digest are ignored.
func (s *State) AddPrepare(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Type != Prepare || msg.Digest != s.Digest {
		return false
	}
	s.PrepareMsgs[msg.NodeID] = msg
	return true
}

// AddCommit adds a commit message. Messages for another digest are ignored.
func (s *State) AddCommit(msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Type != Commit || msg.Digest != s.Digest {
		return false
	}
	s.CommitMsgs[msg.NodeID] = msg
	return true
}

// PrepareCount returns the number of prepare messages received.
func (s *State) PrepareCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.PrepareMsgs)
}

// CommitCount returns the number of commit messages received.
func (s *State) CommitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.CommitMsgs)
}

// IsPrepared checks if at least quorum prepares were collected after a pre-prepare.
func (s *State) IsPrepared(quorum int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.PrepareMsgs) >= quorum && s.Phase >= PrePrepared
}

// IsCommitted checks if at least quorum commits were collected once prepared.
func (s *State) IsCommitted(quorum int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.CommitMsgs) >= quorum && s.Phase >= Prepared
}

// TransitionToPrepared transitions to Prepared phase.
func (s *State) TransitionToPrepared() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase == PrePrepared {
		s.Phase = Prepared
	}
}

// TransitionToCommitted transitions to Committed phase.
func (s *State) TransitionToCommitted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase == Prepared {
		s.Phase = Committed
	}
}

// MarkExecuted marks the state as executed.
func (s *State) MarkExecuted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Executed = true
}

// GetPhase returns the current phase.
func (s *State) GetPhase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Phase
}

// StateLog는 시퀸스 번호별 라운드 상태를 윈도우 단위로 유지한다.
type StateLog struct {
	mu     sync.RWMutex
	states map[uint64]*State

	// 윈도우 시작 (체크포인트된 마지막 시퀸스)
	LowWaterMark uint64

	// 수용할 수 있는 최대 시퀸스 넘버
	HighWaterMark uint64

	WindowSize uint64
}

// NewStateLog creates a new state log.
func NewStateLog(windowSize uint64) *StateLog {
	return &StateLog{
		states:        make(map[uint64]*State),
		HighWaterMark: windowSize,
		WindowSize:    windowSize,
	}
}

// NewRound starts a fresh state for a sequence number, discarding any earlier attempt.
func (sl *StateLog) NewRound(view, seqNum uint64) *State {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	state := NewState(view, seqNum)
	sl.states[seqNum] = state
	return state
}

// GetExistingState returns the state for a sequence number if it exists.
func (sl *StateLog) GetExistingState(seqNum uint64) *State {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	return sl.states[seqNum]
}

// IsInWindow checks 시퀸스 번호가 수용가능한 윈도우에 있는지 확인하는 함수
func (sl *StateLog) IsInWindow(seqNum uint64) bool {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	return seqNum >= sl.LowWaterMark && seqNum < sl.HighWaterMark
}

// AdvanceWatermarks advances the water marks after a checkpoint and drops older states.
func (sl *StateLog) AdvanceWatermarks(checkpoint uint64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if checkpoint > sl.LowWaterMark {
		sl.LowWaterMark = checkpoint
		sl.HighWaterMark = checkpoint + sl.WindowSize

		for seqNum := range sl.states {
			if seqNum < sl.LowWaterMark {
				delete(sl.states, seqNum)
			}
		}
	}
}

// Len returns the number of tracked states.
func (sl *StateLog) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	return len(sl.states)
}
