package graph

// DefaultMaxTurns bounds the correction loop when no WithMaxTurns option is given.
const DefaultMaxTurns = 8

// Route decides where control goes after a Supervisor step.
//
// It is a pure, total function of the state:
//  1. no proposal yet: NodePlanner
//  2. proposal not reviewed: NodeReviewer
//  3. proposal approved: NodeEnd
//  4. rejected and TurnCount < maxTurns: NodePlanner
//  5. rejected and the budget is spent: NodeEnd
func Route(s State, maxTurns int) NodeID {
	switch {
	case s.Proposal.IsEmpty():
		return NodePlanner
	case s.Feedback.IsEmpty():
		return NodeReviewer
	case s.Feedback.Approved:
		return NodeEnd
	case s.TurnCount < maxTurns:
		return NodePlanner
	default:
		return NodeEnd
	}
}

// Outcome describes why a run stopped.
type Outcome string

const (
	// OutcomeApproved means the Reviewer accepted the proposal.
	OutcomeApproved Outcome = "approved"
	// OutcomeBudgetExhausted means the turn budget ran out first.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	// OutcomeFailed means the run returned an error.
	OutcomeFailed Outcome = "failed"
)

// OutcomeOf classifies a final state produced by a completed run.
func OutcomeOf(s State) Outcome {
	if s.Feedback.Approved {
		return OutcomeApproved
	}
	return OutcomeBudgetExhausted
}
