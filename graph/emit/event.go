package emit

// Event is a single observability record emitted by the engine.
//
// Messages emitted by the engine:
//   - run_start: a run began (meta: max_turns, max_steps)
//   - node_end: a node's update was validated and merged
//   - route: the router chose the next node (meta: next, turn_count)
//   - run_end: the run reached END (meta: outcome, steps, turn_count, duration_ms)
//   - run_error: the run failed (meta: error)
//   - run_abandoned: the consumer stopped reading the step stream early
type Event struct {
	// RunID identifies the run that emitted this event.
	RunID string

	// Step is the 1-based step index. Zero for run-level events.
	Step int

	// NodeID is the node that ran ("supervisor", "planner", "reviewer").
	// Empty for run-level events.
	NodeID string

	// Msg names the event.
	Msg string

	// Meta carries event-specific fields such as latency_ms, turn_count,
	// approved, issues, headline or error.
	Meta map[string]interface{}
}
