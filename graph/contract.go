package graph

import "fmt"

// validateUpdate checks a node's update against the state invariants before
// it is merged, so Route never decides on inconsistent state.
func validateUpdate(node NodeID, prev State, u Update) error {
	if u.Feedback != nil && u.Feedback.Approved && len(u.Feedback.Issues) > 0 {
		return contractError(node, "approved feedback must not list issues")
	}

	switch node {
	case NodeSupervisor:
		if u.TurnCount == nil {
			return contractError(node, "update must set turn_count")
		}
		if *u.TurnCount != prev.TurnCount+1 {
			return contractError(node, fmt.Sprintf("turn_count must advance by one (got %d after %d)", *u.TurnCount, prev.TurnCount))
		}
		if u.Proposal != nil || u.Feedback != nil {
			return contractError(node, "update may only set turn_count")
		}

	case NodePlanner:
		if u.TurnCount != nil {
			return contractError(node, "update must not set turn_count")
		}
		if u.Proposal == nil || u.Proposal.IsEmpty() {
			return contractError(node, "update must carry a non-empty proposal")
		}
		if u.Feedback == nil || !u.Feedback.IsEmpty() {
			return contractError(node, "update must clear feedback")
		}

	case NodeReviewer:
		if u.TurnCount != nil {
			return contractError(node, "update must not set turn_count")
		}
		if u.Proposal != nil {
			return contractError(node, "update must not change the proposal")
		}
		if u.Feedback == nil || u.Feedback.IsEmpty() {
			return contractError(node, "update must carry a verdict (approved, or rejected with issues)")
		}

	default:
		return contractError(node, "not an executable node")
	}
	return nil
}
