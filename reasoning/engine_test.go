package reasoning

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestEngine_TrunkSequenceNumbering(t *testing.T) {
	e := New()

	for i := 1; i <= 4; i++ {
		ack, err := e.Submit("s1", Thought{
			Text:          fmt.Sprintf("step%d", i),
			TotalExpected: 4,
			MoreNeeded:    i < 4,
		})
		if err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
		if ack.Sequence != i {
			t.Fatalf("expected sequence %d, got %d", i, ack.Sequence)
		}
	}
}

func TestEngine_MoreNeededFromHint(t *testing.T) {
	e := New()

	// MoreNeeded=false but sequence below the hint still signals more.
	ack, err := e.Submit("s1", Thought{Text: "step1", TotalExpected: 3, MoreNeeded: false})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !ack.MoreNeeded {
		t.Fatalf("sequence 1 of expected 3 should report more needed")
	}
}

func TestEngine_HintOnlyGrows(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "a", TotalExpected: 5, MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// A smaller hint must not shrink the recorded total.
	ack, err := e.Submit("s1", Thought{Text: "b", TotalExpected: 2, MoreNeeded: false})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !ack.MoreNeeded {
		t.Fatalf("hint should remain 5, so sequence 2 reports more needed")
	}
}

func TestEngine_CompletionAndReopen(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "a", TotalExpected: 2, MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	ack, err := e.Submit("s1", Thought{Text: "b", TotalExpected: 2, MoreNeeded: false})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ack.MoreNeeded {
		t.Fatalf("terminal submission should not report more needed")
	}
	if !e.BranchComplete("s1", "") {
		t.Fatalf("trunk should be complete")
	}

	// Further submissions reopen the branch without error.
	ack, err = e.Submit("s1", Thought{Text: "afterthought", MoreNeeded: true})
	if err != nil {
		t.Fatalf("reopen submit failed: %v", err)
	}
	if ack.Sequence != 3 {
		t.Fatalf("expected sequence 3 after reopen, got %d", ack.Sequence)
	}
	if e.BranchComplete("s1", "") {
		t.Fatalf("branch should be reopened")
	}
}

func TestEngine_RevisionTargetMustExist(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "a", MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := e.Submit("s1", Thought{Text: "revise", MoreNeeded: true, RevisesThought: 3})
	var invalid *InvalidRevisionTargetError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRevisionTargetError, got %v", err)
	}
	if invalid.Target != 3 {
		t.Fatalf("unexpected target: %d", invalid.Target)
	}

	// The rejected submission must not have consumed a sequence number.
	ack, err := e.Submit("s1", Thought{Text: "b", MoreNeeded: true})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ack.Sequence != 2 {
		t.Fatalf("expected sequence 2, got %d", ack.Sequence)
	}

	// Revising an existing thought works.
	if _, err := e.Submit("s1", Thought{Text: "b'", MoreNeeded: true, RevisesThought: 2}); err != nil {
		t.Fatalf("valid revision failed: %v", err)
	}
}

func TestEngine_BranchingFromTrunk(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "step1", TotalExpected: 3, MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Fork "alt" at trunk thought 1: its first node takes lineage sequence 2.
	ack, err := e.Submit("s1", Thought{
		Text:              "alt-step",
		MoreNeeded:        true,
		BranchID:          "alt",
		BranchFromThought: 1,
	})
	if err != nil {
		t.Fatalf("branch submit failed: %v", err)
	}
	if ack.Sequence != 2 {
		t.Fatalf("expected local sequence 2, got %d", ack.Sequence)
	}
	if len(ack.Branches) != 1 || ack.Branches[0] != "alt" {
		t.Fatalf("expected known branches [alt], got %v", ack.Branches)
	}

	dir := e.Session("s1").Directory()
	origin, ok := dir["alt"]
	if !ok || origin.BranchID != "" || origin.Sequence != 1 {
		t.Fatalf("unexpected branch directory: %#v", dir)
	}

	// Trunk node 1 is visible from the branch; revise it there.
	if _, err := e.Submit("s1", Thought{Text: "rework step1", MoreNeeded: true, BranchID: "alt", RevisesThought: 1}); err != nil {
		t.Fatalf("revising trunk ancestor from branch failed: %v", err)
	}
}

func TestEngine_InvalidBranchOrigin(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "step1", MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err := e.Submit("s1", Thought{Text: "x", MoreNeeded: true, BranchID: "alt", BranchFromThought: 9})
	var invalid *InvalidBranchOriginError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBranchOriginError, got %v", err)
	}

	// A missing fork point is equally invalid.
	_, err = e.Submit("s1", Thought{Text: "x", MoreNeeded: true, BranchID: "alt"})
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBranchOriginError, got %v", err)
	}

	// The failed registrations must not be remembered.
	ack, err := e.Submit("s1", Thought{Text: "step2", MoreNeeded: true})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(ack.Branches) != 0 {
		t.Fatalf("expected no known branches, got %v", ack.Branches)
	}
}

func TestEngine_SiblingBranchNodesAreInvisible(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "step1", MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// Branch "a" gets lineage sequences 2 and 3.
	for _, txt := range []string{"a1", "a2"} {
		if _, err := e.Submit("s1", Thought{Text: txt, MoreNeeded: true, BranchID: "a", BranchFromThought: 1}); err != nil {
			t.Fatalf("branch a submit failed: %v", err)
		}
	}
	// Branch "b" forks from trunk thought 1 as well.
	if _, err := e.Submit("s1", Thought{Text: "b1", MoreNeeded: true, BranchID: "b", BranchFromThought: 1}); err != nil {
		t.Fatalf("branch b submit failed: %v", err)
	}

	// Sequence 3 only exists in sibling branch "a"; it is not visible to "b".
	_, err := e.Submit("s1", Thought{Text: "bad", MoreNeeded: true, BranchID: "b", RevisesThought: 3})
	var invalid *InvalidRevisionTargetError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRevisionTargetError, got %v", err)
	}
}

func TestEngine_NestedBranchLineage(t *testing.T) {
	e := New()

	for i := 0; i < 2; i++ {
		if _, err := e.Submit("s1", Thought{Text: "trunk", MoreNeeded: true}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	// Fork "a" at trunk 2, then fork "a2" off "a" at sequence 3.
	if _, err := e.Submit("s1", Thought{Text: "a1", MoreNeeded: true, BranchID: "a", BranchFromThought: 2}); err != nil {
		t.Fatalf("branch a failed: %v", err)
	}
	ack, err := e.Submit("s1", Thought{Text: "a2-1", MoreNeeded: true, BranchID: "a2", BranchFromThought: 3})
	if err != nil {
		t.Fatalf("nested branch failed: %v", err)
	}
	if ack.Sequence != 4 {
		t.Fatalf("expected lineage sequence 4, got %d", ack.Sequence)
	}

	// Trunk node 1 remains visible through two levels of origins.
	if _, err := e.Submit("s1", Thought{Text: "re", MoreNeeded: true, BranchID: "a2", RevisesThought: 1}); err != nil {
		t.Fatalf("deep lineage revision failed: %v", err)
	}
}

func TestEngine_SessionsAreIndependent(t *testing.T) {
	e := New()

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", s)
			for i := 1; i <= 20; i++ {
				ack, err := e.Submit(id, Thought{Text: "t", MoreNeeded: true})
				if err != nil {
					t.Errorf("submit failed: %v", err)
					return
				}
				if ack.Sequence != i {
					t.Errorf("session %s: expected %d, got %d", id, i, ack.Sequence)
					return
				}
			}
		}(s)
	}
	wg.Wait()
}

func TestEngine_CloseAndReset(t *testing.T) {
	e := New()

	if _, err := e.Submit("s1", Thought{Text: "a", MoreNeeded: true}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	e.CloseSession("s1")

	// A fresh session starts at sequence 1 again.
	ack, err := e.Submit("s1", Thought{Text: "b", MoreNeeded: true})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ack.Sequence != 1 {
		t.Fatalf("expected fresh trunk, got sequence %d", ack.Sequence)
	}

	e.Reset()
	ack, _ = e.Submit("s1", Thought{Text: "c", MoreNeeded: true})
	if ack.Sequence != 1 {
		t.Fatalf("expected reset engine, got sequence %d", ack.Sequence)
	}
}
