package graph

import (
	"context"
	"reflect"
	"testing"
)

func TestRoute(t *testing.T) {
	proposal := Proposal{Headline: "h", Sections: []string{"s"}}
	rejected := Feedback{Issues: []string{"x"}}
	approved := Feedback{Approved: true}

	tests := []struct {
		name  string
		state State
		max   int
		want  NodeID
	}{
		{"empty state", State{}, 8, NodePlanner},
		{"empty state at budget", State{TurnCount: 9}, 8, NodePlanner},
		{"unreviewed proposal", State{Proposal: proposal, TurnCount: 2}, 8, NodeReviewer},
		{"unreviewed beyond budget", State{Proposal: proposal, TurnCount: 20}, 8, NodeReviewer},
		{"approved", State{Proposal: proposal, Feedback: approved, TurnCount: 4}, 8, NodeEnd},
		{"rejected under budget", State{Proposal: proposal, Feedback: rejected, TurnCount: 3}, 8, NodePlanner},
		{"rejected one below budget", State{Proposal: proposal, Feedback: rejected, TurnCount: 7}, 8, NodePlanner},
		{"rejected at budget", State{Proposal: proposal, Feedback: rejected, TurnCount: 8}, 8, NodeEnd},
		{"rejected over budget", State{Proposal: proposal, Feedback: rejected, TurnCount: 12}, 8, NodeEnd},
		{"summary only counts as proposal", State{Proposal: Proposal{Summary: "s"}}, 8, NodeReviewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.state, tt.max); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteDeterministic(t *testing.T) {
	proposals := []Proposal{{}, {Headline: "h", Sections: []string{"a", "b"}}}
	feedbacks := []Feedback{{}, {Issues: []string{"x"}}, {Approved: true, Issues: []string{}}}

	for _, p := range proposals {
		for _, fb := range feedbacks {
			for turn := 0; turn <= 12; turn++ {
				for budget := 1; budget <= 8; budget++ {
					s := State{Title: "t", Task: "task", Proposal: p, Feedback: fb, TurnCount: turn}
					before := s.Clone()

					first := Route(s, budget)
					for range 3 {
						if got := Route(s.Clone(), budget); got != first {
							t.Fatalf("Route(%+v, %d) = %v then %v", s, budget, first, got)
						}
					}
					equal := State{Title: "t", Task: "task", Proposal: p.Clone(), Feedback: fb.Clone(), TurnCount: turn}
					if got := Route(equal, budget); got != first {
						t.Errorf("equal states routed differently: %v and %v", first, got)
					}
					if !reflect.DeepEqual(s, before) {
						t.Fatalf("Route mutated its input: %+v", s)
					}
				}
			}
		}
	}
}

func TestSupervisor(t *testing.T) {
	sup := Supervisor()
	s := State{TurnCount: 4, Proposal: Proposal{Headline: "h"}}

	result := sup.Run(context.Background(), s)
	if result.Err != nil {
		t.Fatal(result.Err)
	}
	if result.Delta.TurnCount == nil || *result.Delta.TurnCount != 5 {
		t.Errorf("TurnCount delta = %v, want 5", result.Delta.TurnCount)
	}
	if result.Delta.Proposal != nil || result.Delta.Feedback != nil {
		t.Error("supervisor must only touch turn_count")
	}
}

func TestOutcomeOf(t *testing.T) {
	if got := OutcomeOf(State{Feedback: Feedback{Approved: true}}); got != OutcomeApproved {
		t.Errorf("got %v", got)
	}
	if got := OutcomeOf(State{Feedback: Feedback{Issues: []string{"x"}}}); got != OutcomeBudgetExhausted {
		t.Errorf("got %v", got)
	}
}

func TestNodeIDText(t *testing.T) {
	for _, id := range []NodeID{NodeSupervisor, NodePlanner, NodeReviewer, NodeEnd} {
		text, _ := id.MarshalText()
		var back NodeID
		if err := back.UnmarshalText(text); err != nil || back != id {
			t.Errorf("%v did not survive text round trip: %v", id, err)
		}
	}
	var id NodeID
	if err := id.UnmarshalText([]byte("critic")); err == nil {
		t.Error("expected error for unknown node")
	}
	if NodeID(42).String() != "NodeID(42)" {
		t.Errorf("got %s", NodeID(42))
	}
}
