package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/reviewloop/graph"
	"github.com/dshills/reviewloop/graph/model"
)

// IssueUnspecified stands in when a model rejects without naming an issue.
const IssueUnspecified = "The reviewer rejected the proposal without giving a reason"

const plannerSystemPrompt = `You plan blog posts. Reply with a single JSON object and nothing else:
{"headline": string, "sections": [string, ...], "summary": string}
Use between four and seven sections.`

const reviewerSystemPrompt = `You review blog post proposals. Reply with a single JSON object and nothing else:
{"approved": boolean, "issues": [string, ...]}
When approved is true, issues must be empty. When approved is false, list every issue that must be fixed.`

// ModelPlanner is a Planner that asks a ChatModel for the proposal.
//
// On a revision pass the reviewer's issues and the previous proposal are
// included in the prompt. Feedback is always cleared.
type ModelPlanner struct {
	Model model.ChatModel

	// System overrides the default system prompt.
	System string
}

// Run implements graph.Node.
func (p *ModelPlanner) Run(ctx context.Context, s graph.State) graph.NodeResult {
	system := p.System
	if system == "" {
		system = plannerSystemPrompt
	}

	out, err := p.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: plannerPrompt(s)},
	})
	if err != nil {
		return nodeFailure(graph.NodePlanner, "MODEL_ERROR", "model call failed", err)
	}

	var proposal graph.Proposal
	if err := decodeObject(out.Text, &proposal); err != nil {
		return nodeFailure(graph.NodePlanner, "PARSE_ERROR", "could not parse proposal", err)
	}
	if proposal.Headline == "" || len(proposal.Sections) == 0 {
		return nodeFailure(graph.NodePlanner, "PARSE_ERROR", "proposal is incomplete", errors.New("headline and sections are required"))
	}

	delta := graph.SetProposal(proposal)
	delta.Feedback = &graph.Feedback{}
	return graph.NodeResult{Delta: delta}
}

func plannerPrompt(s graph.State) string {
	title := s.Title
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Task: %s\n", s.Task)
	fmt.Fprintf(&b, "Content:\n%s\n", s.Content)

	if len(s.Feedback.Issues) > 0 {
		prev, _ := json.Marshal(s.Proposal)
		fmt.Fprintf(&b, "\nYour previous proposal was rejected:\n%s\n", prev)
		b.WriteString("Revise it to address every issue:\n")
		for _, issue := range s.Feedback.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	return b.String()
}

// ModelEvaluator is an Evaluator that asks a ChatModel for the verdict.
//
// The reply is normalised so it always satisfies the feedback invariant:
// an approval drops any issues, a rejection without issues gets
// IssueUnspecified.
type ModelEvaluator struct {
	Model model.ChatModel

	// System overrides the default system prompt.
	System string
}

// Evaluate implements Evaluator.
func (e *ModelEvaluator) Evaluate(ctx context.Context, s graph.State) (graph.Feedback, error) {
	system := e.System
	if system == "" {
		system = reviewerSystemPrompt
	}

	out, err := e.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: system},
		{Role: model.RoleUser, Content: reviewerPrompt(s)},
	})
	if err != nil {
		return graph.Feedback{}, err
	}

	var verdict struct {
		Approved bool     `json:"approved"`
		Issues   []string `json:"issues"`
	}
	if err := decodeObject(out.Text, &verdict); err != nil {
		return graph.Feedback{}, fmt.Errorf("could not parse verdict: %w", err)
	}

	if verdict.Approved {
		return graph.Feedback{Approved: true, Issues: []string{}}, nil
	}
	issues := make([]string, 0, len(verdict.Issues))
	for _, issue := range verdict.Issues {
		if issue = strings.TrimSpace(issue); issue != "" {
			issues = append(issues, issue)
		}
	}
	if len(issues) == 0 {
		issues = []string{IssueUnspecified}
	}
	return graph.Feedback{Approved: false, Issues: issues}, nil
}

func reviewerPrompt(s graph.State) string {
	proposal, _ := json.MarshalIndent(s.Proposal, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", s.Task)
	if s.Strict {
		b.WriteString("Review strictly: approve only a proposal ready to publish.\n")
	}
	fmt.Fprintf(&b, "Proposal:\n%s\n", proposal)
	return b.String()
}

// decodeObject parses a JSON object from text, tolerating prose or code
// fences around it.
func decodeObject(text string, v any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start >= end {
		return errors.New("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func nodeFailure(node graph.NodeID, code, msg string, cause error) graph.NodeResult {
	return graph.NodeResult{Err: &graph.NodeError{
		Message: msg,
		Code:    code,
		NodeID:  node.String(),
		Cause:   cause,
	}}
}
