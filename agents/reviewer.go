package agents

import (
	"context"

	"github.com/dshills/reviewloop/graph"
)

// IssueNoProposal is reported when the Reviewer runs before any proposal exists.
const IssueNoProposal = "no proposal to review"

// Reviewer judges the current proposal through an Evaluator.
//
// An empty proposal is rejected without consulting the Evaluator. An
// Evaluator error fails the node, and with it the run.
type Reviewer struct {
	Evaluator Evaluator
}

// NewReviewer returns a Reviewer node. A nil evaluator selects the reference
// turn cadence.
func NewReviewer(ev Evaluator) graph.Node {
	if ev == nil {
		ev = NewTurnCadence()
	}
	return &Reviewer{Evaluator: ev}
}

// Run implements graph.Node.
func (r *Reviewer) Run(ctx context.Context, s graph.State) graph.NodeResult {
	if s.Proposal.IsEmpty() {
		return graph.NodeResult{Delta: graph.SetFeedback(graph.Feedback{
			Approved: false,
			Issues:   []string{IssueNoProposal},
		})}
	}

	fb, err := r.Evaluator.Evaluate(ctx, s)
	if err != nil {
		return nodeFailure(graph.NodeReviewer, "EVALUATION_FAILED", "evaluation failed", err)
	}
	return graph.NodeResult{Delta: graph.SetFeedback(fb)}
}
