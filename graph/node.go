package graph

import (
	"context"
	"fmt"
)

// NodeID names a state of the workflow machine.
//
// The set is closed: the Engine dispatches on it with an exhaustive switch.
type NodeID int

const (
	// NodeSupervisor counts turns and hands control to Route.
	NodeSupervisor NodeID = iota
	// NodePlanner produces or revises the proposal.
	NodePlanner
	// NodeReviewer produces feedback on the proposal.
	NodeReviewer
	// NodeEnd is terminal.
	NodeEnd
)

// String returns the lower-case name used in events, logs and persisted steps.
func (id NodeID) String() string {
	switch id {
	case NodeSupervisor:
		return "supervisor"
	case NodePlanner:
		return "planner"
	case NodeReviewer:
		return "reviewer"
	case NodeEnd:
		return "END"
	default:
		return fmt.Sprintf("NodeID(%d)", int(id))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	switch string(text) {
	case "supervisor":
		*id = NodeSupervisor
	case "planner":
		*id = NodePlanner
	case "reviewer":
		*id = NodeReviewer
	case "END":
		*id = NodeEnd
	default:
		return fmt.Errorf("unknown node id %q", text)
	}
	return nil
}

// Node is one unit of work in the correction loop.
//
// A node reads the state it is given and describes its changes in the
// returned NodeResult. It must not retain or mutate the state. Nodes may block
// (for example on a model call); the Engine runs nothing else meanwhile.
type Node interface {
	Run(ctx context.Context, state State) NodeResult
}

// NodeResult is the output of a node execution.
type NodeResult struct {
	// Delta is merged into the state by the Engine.
	Delta Update

	// Err aborts the run. Nodes are never retried.
	Err error
}

// NodeFunc adapts a plain function to the Node interface.
//
// Example:
//
//	echo := NodeFunc(func(ctx context.Context, s State) NodeResult {
//	    return NodeResult{Delta: SetTurnCount(s.TurnCount)}
//	})
type NodeFunc func(ctx context.Context, state State) NodeResult

// Run implements Node.
func (f NodeFunc) Run(ctx context.Context, state State) NodeResult {
	return f(ctx, state)
}

// NodeError represents an error that occurred during node execution.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
