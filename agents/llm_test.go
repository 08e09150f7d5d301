package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/reviewloop/graph"
	"github.com/dshills/reviewloop/graph/model"
)

func TestModelPlanner(t *testing.T) {
	ctx := context.Background()

	t.Run("first pass", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{
			Text: `{"headline": "Exploring Go", "sections": ["Intro", "Body", "End"], "summary": "About Go."}`,
		}}}
		p := &ModelPlanner{Model: mock}

		result := p.Run(ctx, graph.NewState("Go", "content", "", "Explain Go", false))
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if got := result.Delta.Proposal; got == nil || got.Headline != "Exploring Go" || len(got.Sections) != 3 {
			t.Errorf("proposal = %+v", got)
		}
		if result.Delta.Feedback == nil || !result.Delta.Feedback.IsEmpty() {
			t.Error("feedback must be cleared")
		}

		call := mock.LastCall()
		if len(call) != 2 || call[0].Role != model.RoleSystem || call[1].Role != model.RoleUser {
			t.Fatalf("messages = %+v", call)
		}
		if strings.Contains(call[1].Content, "rejected") {
			t.Error("first pass prompt should not mention a rejection")
		}
	})

	t.Run("revision includes issues", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{
			Text: "Here you go:\n```json\n{\"headline\": \"Go, Revised\", \"sections\": [\"A\"], \"summary\": \"s\"}\n```",
		}}}
		p := &ModelPlanner{Model: mock}

		s := graph.NewState("Go", "content", "", "Explain Go", false)
		s.Proposal = graph.Proposal{Headline: "Exploring Go", Sections: []string{"Intro"}}
		s.Feedback = graph.Feedback{Issues: []string{"headline is dull"}}

		result := p.Run(ctx, s)
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if result.Delta.Proposal.Headline != "Go, Revised" {
			t.Errorf("headline = %q", result.Delta.Proposal.Headline)
		}
		prompt := mock.LastCall()[1].Content
		if !strings.Contains(prompt, "headline is dull") || !strings.Contains(prompt, "Exploring Go") {
			t.Errorf("revision prompt missing context:\n%s", prompt)
		}
	})

	t.Run("failures", func(t *testing.T) {
		tests := []struct {
			name string
			mock *model.MockChatModel
			code string
		}{
			{"model error", &model.MockChatModel{Err: errors.New("down")}, "MODEL_ERROR"},
			{"not json", &model.MockChatModel{Responses: []model.ChatOut{{Text: "no idea"}}}, "PARSE_ERROR"},
			{"incomplete", &model.MockChatModel{Responses: []model.ChatOut{{Text: `{"summary": "only"}`}}}, "PARSE_ERROR"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := (&ModelPlanner{Model: tt.mock}).Run(ctx, graph.State{})
				var nodeErr *graph.NodeError
				if !errors.As(result.Err, &nodeErr) {
					t.Fatalf("expected *graph.NodeError, got %v", result.Err)
				}
				if nodeErr.Code != tt.code || nodeErr.NodeID != "planner" {
					t.Errorf("NodeError = %+v", nodeErr)
				}
			})
		}
	})
}

func TestModelEvaluator(t *testing.T) {
	ctx := context.Background()
	s := graph.State{Proposal: graph.Proposal{Headline: "h", Sections: []string{"a"}}, Strict: true}

	tests := []struct {
		name     string
		reply    string
		approved bool
		issues   []string
	}{
		{"approve", `{"approved": true, "issues": []}`, true, nil},
		{"approve drops issues", `{"approved": true, "issues": ["nit"]}`, true, nil},
		{"reject", `{"approved": false, "issues": ["too short", "  "]}`, false, []string{"too short"}},
		{"reject without issues", `{"approved": false}`, false, []string{IssueUnspecified}},
		{"wrapped in prose", `Verdict: {"approved": false, "issues": ["x"]} thanks`, false, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: tt.reply}}}
			fb, err := (&ModelEvaluator{Model: mock}).Evaluate(ctx, s)
			if err != nil {
				t.Fatal(err)
			}
			if fb.Approved != tt.approved {
				t.Errorf("approved = %v, want %v", fb.Approved, tt.approved)
			}
			if len(fb.Issues) != len(tt.issues) {
				t.Fatalf("issues = %v, want %v", fb.Issues, tt.issues)
			}
			for i := range tt.issues {
				if fb.Issues[i] != tt.issues[i] {
					t.Errorf("issues[%d] = %q, want %q", i, fb.Issues[i], tt.issues[i])
				}
			}
			if !strings.Contains(mock.LastCall()[1].Content, "strictly") {
				t.Error("strict state should be reflected in the prompt")
			}
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		mock := &model.MockChatModel{Responses: []model.ChatOut{{Text: "looks fine"}}}
		if _, err := (&ModelEvaluator{Model: mock}).Evaluate(ctx, s); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("model error", func(t *testing.T) {
		boom := errors.New("boom")
		mock := &model.MockChatModel{Err: boom}
		if _, err := (&ModelEvaluator{Model: mock}).Evaluate(ctx, s); !errors.Is(err, boom) {
			t.Errorf("expected model error, got %v", err)
		}
	})
}

func TestDecodeObject(t *testing.T) {
	var v struct{ A int }
	if err := decodeObject(`{"A": 1}`, &v); err != nil || v.A != 1 {
		t.Errorf("direct decode: %v %+v", err, v)
	}
	if err := decodeObject("```json\n{\"A\": 2}\n```", &v); err != nil || v.A != 2 {
		t.Errorf("fenced decode: %v %+v", err, v)
	}
	if err := decodeObject("}{", &v); err == nil {
		t.Error("expected error for inverted braces")
	}
}
