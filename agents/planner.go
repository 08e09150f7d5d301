// Package agents provides the Planner and Reviewer nodes of the correction
// loop, both as deterministic reference implementations and backed by a
// model.ChatModel.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/reviewloop/graph"
)

// FirstPassSections is the outline of a first-pass proposal.
var FirstPassSections = []string{
	"Introduction",
	"Background and Context",
	"Key Insights",
	"Practical Applications",
	"Conclusion",
}

// RevisionSections is the outline of a proposal revised after rejection.
var RevisionSections = []string{
	"Introduction and Motivation",
	"Current Landscape and Key Trends",
	"In-Depth Analysis with Examples",
	"Challenges and Ethical Considerations",
	"Conclusion and Future Outlook",
}

// DefaultTitle replaces an empty title.
const DefaultTitle = "Untitled"

// excerptRunes is how much of the content a summary quotes.
const excerptRunes = 80

// Planner is the deterministic reference Planner.
//
// Without reviewer issues it drafts a first-pass proposal; with issues it
// drafts a revision that addresses the first two. Either way it clears the
// feedback so the router sends the proposal back for review.
type Planner struct{}

// NewPlanner returns the reference Planner as a graph.Node.
func NewPlanner() graph.Node {
	return Planner{}
}

// Run implements graph.Node.
func (Planner) Run(_ context.Context, s graph.State) graph.NodeResult {
	delta := graph.SetProposal(Draft(s))
	delta.Feedback = &graph.Feedback{}
	return graph.NodeResult{Delta: delta}
}

// Draft builds the proposal the reference Planner would write for s.
func Draft(s graph.State) graph.Proposal {
	title := s.Title
	if title == "" {
		title = DefaultTitle
	}
	excerpt := truncateRunes(s.Content, excerptRunes)

	if issues := s.Feedback.Issues; len(issues) > 0 {
		return graph.Proposal{
			Headline: title + " — Revised Edition",
			Sections: append([]string(nil), RevisionSections...),
			Summary: fmt.Sprintf(
				"This revised blog post on '%s' addresses the reviewer's feedback by expanding on %s. It covers %s...",
				title, strings.Join(firstN(issues, 2), ", "), excerpt,
			),
		}
	}

	return graph.Proposal{
		Headline: "Exploring " + title,
		Sections: append([]string(nil), FirstPassSections...),
		Summary: fmt.Sprintf(
			"A comprehensive blog post about '%s'. The post will %s by discussing %s...",
			title, strings.ToLower(s.Task), excerpt,
		),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
