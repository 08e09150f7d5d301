package graph

import "context"

// Supervisor returns the turn-counting node.
//
// It is the fixed entry point and the node every Planner and Reviewer step
// returns to, so turn accounting and routing happen at one place.
func Supervisor() Node {
	return NodeFunc(func(_ context.Context, s State) NodeResult {
		return NodeResult{Delta: SetTurnCount(s.TurnCount + 1)}
	})
}
