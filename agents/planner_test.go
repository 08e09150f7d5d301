package agents

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/reviewloop/graph"
)

func TestPlanner_FirstPass(t *testing.T) {
	s := graph.NewState(
		"The Future of AI in Education",
		"Explore how artificial intelligence is transforming classrooms, personalized learning, and student outcomes.",
		"author@example.com",
		"Write a well-structured blog post about AI in education.",
		false,
	)

	result := NewPlanner().Run(context.Background(), s)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	p := result.Delta.Proposal
	if p == nil {
		t.Fatal("expected a proposal")
	}
	if p.Headline != "Exploring The Future of AI in Education" {
		t.Errorf("Headline = %q", p.Headline)
	}
	if !reflect.DeepEqual(p.Sections, FirstPassSections) {
		t.Errorf("Sections = %v", p.Sections)
	}
	wantSummary := "A comprehensive blog post about 'The Future of AI in Education'. " +
		"The post will write a well-structured blog post about ai in education. by discussing " +
		"Explore how artificial intelligence is transforming classrooms, personalized lea..."
	if p.Summary != wantSummary {
		t.Errorf("Summary =\n%q\nwant\n%q", p.Summary, wantSummary)
	}

	if result.Delta.Feedback == nil || !result.Delta.Feedback.IsEmpty() {
		t.Errorf("Feedback should be cleared, got %+v", result.Delta.Feedback)
	}
	if result.Delta.TurnCount != nil {
		t.Error("Planner must not touch turn_count")
	}
}

func TestPlanner_Revision(t *testing.T) {
	s := graph.NewState("Go Generics", "short", "", "Explain", false)
	s.Proposal = Draft(s)
	s.Feedback = graph.Feedback{Issues: []string{"first", "second", "third"}}

	result := NewPlanner().Run(context.Background(), s)
	p := result.Delta.Proposal

	if p.Headline != "Go Generics — Revised Edition" {
		t.Errorf("Headline = %q", p.Headline)
	}
	if !reflect.DeepEqual(p.Sections, RevisionSections) {
		t.Errorf("Sections = %v", p.Sections)
	}
	want := "This revised blog post on 'Go Generics' addresses the reviewer's feedback by expanding on first, second. It covers short..."
	if p.Summary != want {
		t.Errorf("Summary = %q, want %q", p.Summary, want)
	}
	if strings.Contains(p.Summary, "third") {
		t.Error("only the first two issues should be cited")
	}
	if !result.Delta.Feedback.IsEmpty() {
		t.Error("revision must clear feedback")
	}
}

func TestPlanner_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		state    graph.State
		headline string
	}{
		{"empty title", graph.NewState("", "", "", "", false), "Exploring Untitled"},
		{"unicode content", graph.NewState("Café", strings.Repeat("é", 100), "", "", false), "Exploring Café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Draft(tt.state)
			if p.Headline != tt.headline {
				t.Errorf("Headline = %q, want %q", p.Headline, tt.headline)
			}
			if p.IsEmpty() {
				t.Error("proposal must never be empty")
			}
		})
	}

	p := Draft(graph.NewState("Café", strings.Repeat("é", 100), "", "", false))
	if !strings.Contains(p.Summary, strings.Repeat("é", 80)+"...") || strings.Contains(p.Summary, strings.Repeat("é", 81)) {
		t.Error("content excerpt should be cut at 80 runes")
	}
}

func TestDraft_DoesNotAliasOutline(t *testing.T) {
	p := Draft(graph.NewState("t", "", "", "", false))
	p.Sections[0] = "mutated"
	if FirstPassSections[0] != "Introduction" {
		t.Error("Draft must copy the outline")
	}
}
