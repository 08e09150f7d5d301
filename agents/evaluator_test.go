package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/reviewloop/graph"
)

func TestTurnCadence(t *testing.T) {
	ctx := context.Background()
	strict := TurnCadence{Threshold: 2, StrictExtra: 2}

	tests := []struct {
		cadence  TurnCadence
		turn     int
		strict   bool
		approved bool
	}{
		{NewTurnCadence(), 1, false, false},
		{NewTurnCadence(), 2, false, false},
		{NewTurnCadence(), 3, false, true},
		{NewTurnCadence(), 4, false, true},
		{NewTurnCadence(), 2, true, false},
		{NewTurnCadence(), 4, true, true},
		{strict, 2, false, false},
		{strict, 4, false, true},
		{strict, 2, true, false},
		{strict, 4, true, false},
		{strict, 5, true, true},
		{strict, 6, true, true},
	}

	for _, tt := range tests {
		s := graph.State{TurnCount: tt.turn, Strict: tt.strict}
		fb, err := tt.cadence.Evaluate(ctx, s)
		if err != nil {
			t.Fatal(err)
		}
		if fb.Approved != tt.approved {
			t.Errorf("%+v turn %d strict %v: approved = %v, want %v", tt.cadence, tt.turn, tt.strict, fb.Approved, tt.approved)
		}
		if fb.Approved && len(fb.Issues) != 0 {
			t.Errorf("turn %d: approval with issues %v", tt.turn, fb.Issues)
		}
		if !fb.Approved && len(fb.Issues) != len(DefaultIssues) {
			t.Errorf("turn %d: rejection issues = %v", tt.turn, fb.Issues)
		}
	}
}

func TestAlwaysReject(t *testing.T) {
	ctx := context.Background()

	fb, _ := AlwaysReject().Evaluate(ctx, graph.State{TurnCount: 100})
	if fb.Approved || len(fb.Issues) != 2 {
		t.Errorf("default AlwaysReject = %+v", fb)
	}

	ev := AlwaysReject("needs work")
	fb, _ = ev.Evaluate(ctx, graph.State{})
	if fb.Approved || len(fb.Issues) != 1 || fb.Issues[0] != "needs work" {
		t.Errorf("AlwaysReject(needs work) = %+v", fb)
	}

	fb.Issues[0] = "mutated"
	again, _ := ev.Evaluate(ctx, graph.State{})
	if again.Issues[0] != "needs work" {
		t.Error("AlwaysReject must not share its issue slice")
	}
}

func TestAlwaysApprove(t *testing.T) {
	fb, _ := AlwaysApprove().Evaluate(context.Background(), graph.State{})
	if !fb.Approved || len(fb.Issues) != 0 {
		t.Errorf("AlwaysApprove = %+v", fb)
	}
}

func TestReviewer(t *testing.T) {
	ctx := context.Background()
	withProposal := graph.State{Proposal: graph.Proposal{Headline: "h", Sections: []string{"a"}}, TurnCount: 2}

	t.Run("empty proposal is rejected without evaluating", func(t *testing.T) {
		called := false
		r := NewReviewer(EvaluatorFunc(func(context.Context, graph.State) (graph.Feedback, error) {
			called = true
			return graph.Feedback{Approved: true}, nil
		}))

		result := r.Run(ctx, graph.State{})
		if called {
			t.Error("evaluator should not be consulted")
		}
		fb := result.Delta.Feedback
		if fb == nil || fb.Approved || len(fb.Issues) != 1 || fb.Issues[0] != IssueNoProposal {
			t.Errorf("feedback = %+v", fb)
		}
	})

	t.Run("delegates to evaluator", func(t *testing.T) {
		result := NewReviewer(nil).Run(ctx, withProposal)
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if result.Delta.Proposal != nil || result.Delta.TurnCount != nil {
			t.Error("Reviewer may only write feedback")
		}
		if result.Delta.Feedback.Approved {
			t.Error("reference cadence should reject at turn 2")
		}
	})

	t.Run("evaluator error fails the node", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewReviewer(EvaluatorFunc(func(context.Context, graph.State) (graph.Feedback, error) {
			return graph.Feedback{}, boom
		}))

		result := r.Run(ctx, withProposal)
		var nodeErr *graph.NodeError
		if !errors.As(result.Err, &nodeErr) {
			t.Fatalf("expected *graph.NodeError, got %v", result.Err)
		}
		if nodeErr.NodeID != "reviewer" || nodeErr.Code != "EVALUATION_FAILED" {
			t.Errorf("NodeError = %+v", nodeErr)
		}
		if !errors.Is(result.Err, boom) {
			t.Error("NodeError should wrap the evaluator error")
		}
	})
}
