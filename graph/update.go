package graph

// Update is the partial state change returned by a node.
//
// Only the non-nil fields are merged into State. There is no deep merge and
// no way to delete a field; setting Feedback to an empty record is how the
// Planner clears a previous verdict.
type Update struct {
	Proposal  *Proposal `json:"proposal,omitempty"`
	Feedback  *Feedback `json:"feedback,omitempty"`
	TurnCount *int      `json:"turn_count,omitempty"`
}

// IsZero reports whether u changes nothing.
func (u Update) IsZero() bool {
	return u.Proposal == nil && u.Feedback == nil && u.TurnCount == nil
}

// SetProposal returns an Update that replaces the proposal.
func SetProposal(p Proposal) Update {
	p = p.Clone()
	return Update{Proposal: &p}
}

// SetFeedback returns an Update that replaces the feedback.
func SetFeedback(f Feedback) Update {
	f = f.Clone()
	return Update{Feedback: &f}
}

// ClearFeedback returns an Update that resets feedback to the empty record.
func ClearFeedback() Update {
	return Update{Feedback: &Feedback{}}
}

// SetTurnCount returns an Update that sets the turn counter.
func SetTurnCount(n int) Update {
	return Update{TurnCount: &n}
}

// Clone returns a copy of u that shares no memory with it.
func (u Update) Clone() Update {
	var out Update
	if u.Proposal != nil {
		p := u.Proposal.Clone()
		out.Proposal = &p
	}
	if u.Feedback != nil {
		f := u.Feedback.Clone()
		out.Feedback = &f
	}
	if u.TurnCount != nil {
		n := *u.TurnCount
		out.TurnCount = &n
	}
	return out
}
