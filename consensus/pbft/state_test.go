package pbft

import (
	"fmt"
	"testing"
)

func TestNewState(t *testing.T) {
	state := NewState(1, 100)

	if state.View != 1 {
		t.Errorf("expected view 1, got %d", state.View)
	}

	if state.SequenceNum != 100 {
		t.Errorf("expected sequence 100, got %d", state.SequenceNum)
	}

	if state.GetPhase() != Idle {
		t.Errorf("expected Idle phase, got %v", state.GetPhase())
	}
}

func TestStateTransitions(t *testing.T) {
	state := NewState(0, 1)

	state.SetPrePrepare(NewMessage(PrePrepare, 0, 1, "digest", "node_0", 10))
	if state.GetPhase() != PrePrepared {
		t.Errorf("expected PrePrepared phase, got %v", state.GetPhase())
	}

	for i := 1; i <= 3; i++ {
		state.AddPrepare(NewMessage(Prepare, 0, 1, "digest", fmt.Sprintf("node_%d", i), 10))
	}
	if state.PrepareCount() != 3 {
		t.Errorf("expected 3 prepares, got %d", state.PrepareCount())
	}

	if state.IsPrepared(3) {
		state.TransitionToPrepared()
	}
	if state.GetPhase() != Prepared {
		t.Errorf("expected Prepared phase, got %v", state.GetPhase())
	}

	for i := 0; i < 3; i++ {
		state.AddCommit(NewMessage(Commit, 0, 1, "digest", fmt.Sprintf("node_%d", i), 10))
	}
	if state.CommitCount() != 3 {
		t.Errorf("expected 3 commits, got %d", state.CommitCount())
	}

	if state.IsCommitted(3) {
		state.TransitionToCommitted()
	}
	if state.GetPhase() != Committed {
		t.Errorf("expected Committed phase, got %v", state.GetPhase())
	}
}

func TestStateRejectsForeignDigest(t *testing.T) {
	state := NewState(0, 1)
	state.SetPrePrepare(NewMessage(PrePrepare, 0, 1, "digest", "node_0", 10))

	if state.AddPrepare(NewMessage(Prepare, 0, 1, "other", "node_1", 10)) {
		t.Error("expected prepare with a different digest to be ignored")
	}
	if state.AddCommit(NewMessage(Prepare, 0, 1, "digest", "node_1", 10)) {
		t.Error("expected a prepare message to be rejected as a commit")
	}
	if state.PrepareCount() != 0 || state.CommitCount() != 0 {
		t.Errorf("expected no votes, got %d prepares and %d commits", state.PrepareCount(), state.CommitCount())
	}
}

func TestCommitRequiresPrepared(t *testing.T) {
	state := NewState(0, 1)
	state.SetPrePrepare(NewMessage(PrePrepare, 0, 1, "digest", "node_0", 10))
	state.AddCommit(NewMessage(Commit, 0, 1, "digest", "node_1", 10))

	if state.IsCommitted(1) {
		t.Error("expected commit quorum to be ignored before the prepared phase")
	}
}

func TestStateLogWatermarks(t *testing.T) {
	sl := NewStateLog(200)

	for seq := uint64(0); seq < 5; seq++ {
		sl.NewRound(0, seq)
	}
	if sl.Len() != 5 {
		t.Errorf("expected 5 states, got %d", sl.Len())
	}
	if !sl.IsInWindow(0) || sl.IsInWindow(200) {
		t.Error("unexpected window bounds")
	}

	sl.AdvanceWatermarks(3)
	if sl.LowWaterMark != 3 || sl.HighWaterMark != 203 {
		t.Errorf("expected watermarks [3, 203), got [%d, %d)", sl.LowWaterMark, sl.HighWaterMark)
	}
	if sl.Len() != 2 {
		t.Errorf("expected 2 states after GC, got %d", sl.Len())
	}
	if sl.GetExistingState(1) != nil {
		t.Error("expected state 1 to be collected")
	}
}

func TestMessageSignature(t *testing.T) {
	msg := NewMessage(Prepare, 2, 7, "digest", "node_3", 42)
	if !msg.Verify() {
		t.Fatal("expected fresh message to verify")
	}

	msg.NodeID = "node_4"
	if msg.Verify() {
		t.Error("expected tampered message to fail verification")
	}

	if PrePrepare.String() != "PRE-PREPARE" || Commit.String() != "COMMIT" {
		t.Errorf("unexpected message type names %s %s", PrePrepare, Commit)
	}
}
