// Package graph provides the planner/reviewer correction-loop engine.
package graph

import "slices"

// State is the single record threaded through every step of a run.
//
// The zero values of Proposal and Feedback mean "absent": a run starts with
// neither, the Planner fills Proposal and the Reviewer fills Feedback.
// State is owned by the Engine for the duration of a run. Nodes receive a
// copy and describe their changes as an Update.
type State struct {
	// Immutable inputs, set once by NewState.
	Title   string `json:"title"`
	Content string `json:"content"`
	Email   string `json:"email"`
	Task    string `json:"task"`
	Strict  bool   `json:"strict"`

	// Proposal is written by the Planner and read by the Reviewer and Route.
	Proposal Proposal `json:"proposal"`

	// Feedback is written by the Reviewer, read by Route, and cleared by the
	// Planner every time it produces a new proposal.
	Feedback Feedback `json:"feedback"`

	// TurnCount is incremented exactly once per Supervisor execution.
	TurnCount int `json:"turn_count"`
}

// Proposal is the Planner's structured output.
type Proposal struct {
	Headline string   `json:"headline"`
	Sections []string `json:"sections"`
	Summary  string   `json:"summary"`
}

// IsEmpty reports whether no proposal has been produced.
func (p Proposal) IsEmpty() bool {
	return p.Headline == "" && len(p.Sections) == 0 && p.Summary == ""
}

// Clone returns a copy of p that shares no memory with it.
func (p Proposal) Clone() Proposal {
	p.Sections = slices.Clone(p.Sections)
	return p
}

// Feedback is the Reviewer's verdict on the current proposal.
//
// A well-formed verdict is either approved with no issues, or rejected with
// at least one issue. The zero value (rejected, no issues) is reserved for
// "not reviewed yet".
type Feedback struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues"`
}

// IsEmpty reports whether the current proposal has not been reviewed.
func (f Feedback) IsEmpty() bool {
	return !f.Approved && len(f.Issues) == 0
}

// Clone returns a copy of f that shares no memory with it.
func (f Feedback) Clone() Feedback {
	f.Issues = slices.Clone(f.Issues)
	return f
}

// NewState builds the initial state for a run. Inputs are accepted as-is.
func NewState(title, content, email, task string, strict bool) State {
	return State{
		Title:   title,
		Content: content,
		Email:   email,
		Task:    task,
		Strict:  strict,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Proposal = s.Proposal.Clone()
	s.Feedback = s.Feedback.Clone()
	return s
}

// Apply merges u into s by key overwrite and returns the result.
// Fields absent from u are left unchanged; s itself is not modified.
func (s State) Apply(u Update) State {
	next := s.Clone()
	if u.Proposal != nil {
		next.Proposal = u.Proposal.Clone()
	}
	if u.Feedback != nil {
		next.Feedback = u.Feedback.Clone()
	}
	if u.TurnCount != nil {
		next.TurnCount = *u.TurnCount
	}
	return next
}
