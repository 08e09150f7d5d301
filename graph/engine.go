package graph

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/reviewloop/graph/emit"
	"github.com/dshills/reviewloop/graph/store"
)

// Engine drives the planner/reviewer correction loop.
//
// The topology is fixed: execution starts at the Supervisor, Route picks the
// next node after every Supervisor step, and Planner and Reviewer always hand
// control back to the Supervisor. Exactly one node runs at a time.
//
// An Engine is immutable after New and may serve concurrent, independent runs.
//
// Example:
//
//	engine, err := graph.New(agents.NewPlanner(), agents.NewReviewer(nil),
//	    graph.WithMaxTurns(8),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	final, err := engine.Run(ctx, "", graph.NewState(title, content, email, task, false))
type Engine struct {
	planner    Node
	reviewer   Node
	supervisor Node

	// store persists the merged state after each step (optional)
	store store.Store[State]

	// emitter receives observability events (optional)
	emitter emit.Emitter

	// metrics records Prometheus metrics (optional)
	metrics *PrometheusMetrics

	opts Options
}

// Step is one executed node: what ran, what it changed, and the merged state.
type Step struct {
	RunID string `json:"run_id"`

	// Index is the 1-based position of the step in the run.
	Index int `json:"index"`

	Node   NodeID `json:"node"`
	Update Update `json:"update"`

	// State is the state after Update was merged.
	State State `json:"-"`
}

// New creates an Engine around the given Planner and Reviewer nodes.
//
// Returns an error matching ErrInvalidConfig if a node is nil or a budget
// option is not positive.
func New(planner, reviewer Node, options ...Option) (*Engine, error) {
	if planner == nil {
		return nil, configError("planner node cannot be nil")
	}
	if reviewer == nil {
		return nil, configError("reviewer node cannot be nil")
	}

	cfg := engineConfig{opts: Options{MaxTurns: DefaultMaxTurns}}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.maxStepSet {
		cfg.opts.MaxSteps = DefaultMaxSteps(cfg.opts.MaxTurns)
	}

	return &Engine{
		planner:    planner,
		reviewer:   reviewer,
		supervisor: Supervisor(),
		store:      cfg.store,
		emitter:    cfg.emitter,
		metrics:    cfg.metrics,
		opts:       cfg.opts,
	}, nil
}

// Options returns the effective budgets of the engine.
func (e *Engine) Options() Options {
	return e.opts
}

// Stream runs the workflow lazily, yielding one Step per executed node.
//
// Every call starts a fresh run from initial. The sequence is forward-only:
// breaking out of the loop stops the run after the current step. A failure is
// yielded once, as the last element, with a zero Step.
//
// An empty runID is replaced with a generated UUID.
//
// Example:
//
//	for step, err := range engine.Stream(ctx, "", initial) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(step.Node, step.State.TurnCount)
//	}
func (e *Engine) Stream(ctx context.Context, runID string, initial State) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		r := e.start(runID, initial)
		for {
			step, done, err := r.next(ctx)
			if err != nil {
				yield(Step{}, err)
				return
			}
			if done {
				return
			}
			if !yield(step, nil) {
				r.abandon()
				return
			}
		}
	}
}

// Trace runs the workflow to completion and returns every step together with
// the final state. On error the steps executed so far are returned with it.
func (e *Engine) Trace(ctx context.Context, runID string, initial State) ([]Step, State, error) {
	var steps []Step
	for step, err := range e.Stream(ctx, runID, initial) {
		if err != nil {
			return steps, State{}, err
		}
		steps = append(steps, step)
	}
	return steps, steps[len(steps)-1].State, nil
}

// Run executes the workflow to completion and returns only the final state.
func (e *Engine) Run(ctx context.Context, runID string, initial State) (State, error) {
	var final State
	for step, err := range e.Stream(ctx, runID, initial) {
		if err != nil {
			return State{}, err
		}
		final = step.State
	}
	return final, nil
}

// node resolves a NodeID to its implementation.
func (e *Engine) node(id NodeID) Node {
	switch id {
	case NodeSupervisor:
		return e.supervisor
	case NodePlanner:
		return e.planner
	case NodeReviewer:
		return e.reviewer
	case NodeEnd:
		return nil
	}
	return nil
}

// run holds the loop state of a single execution.
type run struct {
	e       *Engine
	id      string
	state   State
	current NodeID
	index   int
	started time.Time
	closed  bool
}

func (e *Engine) start(runID string, initial State) *run {
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &run{
		e:       e,
		id:      runID,
		state:   initial.Clone(),
		current: NodeSupervisor,
		started: time.Now(),
	}
	if e.metrics != nil {
		e.metrics.RunStarted()
	}
	r.emit(0, "", "run_start", map[string]interface{}{
		"max_turns": e.opts.MaxTurns,
		"max_steps": e.opts.MaxSteps,
	})
	return r
}

// next executes the current node, merges its update and advances the machine.
// It reports done once the machine has reached NodeEnd.
func (r *run) next(ctx context.Context) (Step, bool, error) {
	if r.current == NodeEnd {
		r.finish()
		return Step{}, true, nil
	}

	if r.index >= r.e.opts.MaxSteps {
		return Step{}, false, r.fail(&EngineError{
			Message: "workflow exceeded MaxSteps limit",
			Code:    CodeMaxStepsExceeded,
		})
	}

	if err := ctx.Err(); err != nil {
		return Step{}, false, r.fail(err)
	}

	impl := r.e.node(r.current)
	if impl == nil {
		return Step{}, false, r.fail(&EngineError{
			Message: "no implementation for node " + r.current.String(),
			Code:    CodeInvalidConfig,
		})
	}

	r.index++
	began := time.Now()
	result := runNode(ctx, r.current, impl, r.state.Clone(), r.e.opts.NodeTimeout)
	latency := time.Since(began)

	if result.Err != nil {
		r.observe(latency, "error")
		var nodeErr *NodeError
		if !errors.As(result.Err, &nodeErr) {
			result.Err = &NodeError{
				Message: "execution failed",
				Code:    "NODE_FAILED",
				NodeID:  r.current.String(),
				Cause:   result.Err,
			}
		}
		return Step{}, false, r.fail(result.Err)
	}

	delta := result.Delta.Clone()
	if err := validateUpdate(r.current, r.state, delta); err != nil {
		r.observe(latency, "invalid")
		if r.e.metrics != nil {
			r.e.metrics.IncrementContractViolations(r.current.String())
		}
		return Step{}, false, r.fail(err)
	}
	r.observe(latency, "success")

	r.state = r.state.Apply(delta)

	if r.e.store != nil {
		if err := r.e.store.SaveStep(ctx, r.id, r.index, r.current.String(), r.state); err != nil {
			return Step{}, false, r.fail(&EngineError{
				Message: "failed to save step",
				Code:    CodeStoreError,
				Cause:   err,
			})
		}
	}

	r.emit(r.index, r.current.String(), "node_end", stepMeta(latency, delta, r.state))

	step := Step{
		RunID:  r.id,
		Index:  r.index,
		Node:   r.current,
		Update: delta,
		State:  r.state.Clone(),
	}

	switch r.current {
	case NodeSupervisor:
		r.current = Route(r.state, r.e.opts.MaxTurns)
		r.emit(r.index, NodeSupervisor.String(), "route", map[string]interface{}{
			"next":       r.current.String(),
			"turn_count": r.state.TurnCount,
		})
	case NodePlanner, NodeReviewer:
		r.current = NodeSupervisor
	case NodeEnd:
	}

	return step, false, nil
}

func (r *run) finish() {
	if r.closed {
		return
	}
	r.closed = true
	outcome := OutcomeOf(r.state)
	if r.e.metrics != nil {
		r.e.metrics.RunFinished(string(outcome), r.state.TurnCount)
	}
	r.emit(0, "", "run_end", map[string]interface{}{
		"outcome":     string(outcome),
		"steps":       r.index,
		"turn_count":  r.state.TurnCount,
		"duration_ms": time.Since(r.started).Milliseconds(),
	})
}

func (r *run) fail(err error) error {
	if r.closed {
		return err
	}
	r.closed = true
	if r.e.metrics != nil {
		r.e.metrics.RunFinished(string(OutcomeFailed), r.state.TurnCount)
	}
	r.emit(r.index, r.current.String(), "run_error", map[string]interface{}{
		"error": err.Error(),
	})
	return err
}

// abandon closes a run whose consumer stopped reading. A run that had
// already routed to NodeEnd is complete and closes as finished.
func (r *run) abandon() {
	if r.closed {
		return
	}
	if r.current == NodeEnd {
		r.finish()
		return
	}
	r.closed = true
	if r.e.metrics != nil {
		r.e.metrics.RunFinished("abandoned", r.state.TurnCount)
	}
	r.emit(r.index, "", "run_abandoned", nil)
}

func (r *run) observe(latency time.Duration, status string) {
	if r.e.metrics != nil {
		r.e.metrics.RecordStepLatency(r.current.String(), latency, status)
	}
}

func (r *run) emit(step int, nodeID, msg string, meta map[string]interface{}) {
	if r.e.emitter == nil {
		return
	}
	r.e.emitter.Emit(emit.Event{
		RunID:  r.id,
		Step:   step,
		NodeID: nodeID,
		Msg:    msg,
		Meta:   meta,
	})
}

// stepMeta summarises a merged update for the node_end event.
func stepMeta(latency time.Duration, u Update, s State) map[string]interface{} {
	meta := map[string]interface{}{
		"latency_ms": latency.Milliseconds(),
		"turn_count": s.TurnCount,
	}
	if u.Proposal != nil {
		meta["headline"] = u.Proposal.Headline
		meta["sections"] = len(u.Proposal.Sections)
	}
	if u.Feedback != nil {
		meta["approved"] = u.Feedback.Approved
		meta["issues"] = len(u.Feedback.Issues)
	}
	return meta
}
