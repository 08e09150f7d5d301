package agents

import (
	"context"

	"github.com/dshills/reviewloop/graph"
)

// Evaluator decides whether a proposal is approved.
//
// The returned Feedback must be either approved with no issues, or rejected
// with at least one issue; the engine rejects anything else.
type Evaluator interface {
	Evaluate(ctx context.Context, s graph.State) (graph.Feedback, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, s graph.State) (graph.Feedback, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, s graph.State) (graph.Feedback, error) {
	return f(ctx, s)
}

// DefaultIssues are raised by the reference cadence while it rejects.
var DefaultIssues = []string{
	"The headline could be more engaging",
	"Add a section on challenges or limitations",
}

// TurnCadence is the reference review policy: it rejects while TurnCount is
// at or below the threshold and approves afterwards. It looks at the turn
// counter only, never at the proposal.
//
// With the defaults every run is rejected once (turn 2) and approved at
// turn 4, strict or not. A non-zero StrictExtra raises the threshold for
// strict runs; with 2 they get the reject, reject, approve cadence.
type TurnCadence struct {
	Threshold   int
	StrictExtra int
}

// NewTurnCadence returns the cadence with threshold 2. Strict runs are not
// treated differently.
func NewTurnCadence() TurnCadence {
	return TurnCadence{Threshold: 2}
}

// Evaluate implements Evaluator.
func (c TurnCadence) Evaluate(_ context.Context, s graph.State) (graph.Feedback, error) {
	threshold := c.Threshold
	if s.Strict {
		threshold += c.StrictExtra
	}
	if s.TurnCount <= threshold {
		return graph.Feedback{
			Approved: false,
			Issues:   append([]string(nil), DefaultIssues...),
		}, nil
	}
	return graph.Feedback{Approved: true, Issues: []string{}}, nil
}

// AlwaysReject returns an Evaluator that never approves. With no issues given
// it raises DefaultIssues.
func AlwaysReject(issues ...string) Evaluator {
	if len(issues) == 0 {
		issues = DefaultIssues
	}
	issues = append([]string(nil), issues...)
	return EvaluatorFunc(func(context.Context, graph.State) (graph.Feedback, error) {
		return graph.Feedback{Approved: false, Issues: append([]string(nil), issues...)}, nil
	})
}

// AlwaysApprove returns an Evaluator that approves every proposal.
func AlwaysApprove() Evaluator {
	return EvaluatorFunc(func(context.Context, graph.State) (graph.Feedback, error) {
		return graph.Feedback{Approved: true, Issues: []string{}}, nil
	})
}
