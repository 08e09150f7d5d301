// Package model provides LLM chat adapters used by the model-backed Planner
// and Reviewer.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChatModel is the provider-neutral chat completion interface.
//
// Implementations convert the Message list to the provider's wire format,
// honour ctx cancellation and translate provider failures into
// *ProviderError. They do not retry; the engine treats a node error as fatal.
//
// Example usage:
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "You review article outlines."},
//	    {Role: model.RoleUser, Content: prompt},
//	})
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (ChatOut, error)
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, messages []Message) (ChatOut, error)

// Chat calls f.
func (f ChatModelFunc) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	return f(ctx, messages)
}

// Message is a single conversation turn.
type Message struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant.
	Role string

	Content string
}

// Standard role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatOut is the result of a chat completion.
type ChatOut struct {
	Text  string
	Usage Usage
}

// Usage reports token consumption of one call. Zero when the provider does
// not report it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty model response")

// Error codes carried by ProviderError.
const (
	CodeInvalidAPIKey = "invalid_api_key"
	CodeRateLimited   = "rate_limited"
	CodeQuotaExceeded = "quota_exceeded"
	CodeTimeout       = "timeout"
	CodeEmptyResponse = "empty_response"
	CodeAPIError      = "api_error"
)

// ProviderError is a provider failure translated to a common shape.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying SDK error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ClassifyError maps an SDK error onto a ProviderError.
//
// SDK error types differ per provider, so classification works on the
// context sentinels first and on the error text after that.
func ClassifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	out := &ProviderError{Provider: provider, Cause: err}
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Code, out.Message, out.Retryable = CodeTimeout, "request cancelled or timed out", true
	case errors.Is(err, ErrEmptyResponse):
		out.Code, out.Message = CodeEmptyResponse, "model returned no text"
	case containsAny(msg, "401", "403", "authentication", "api_key", "api key", "permission"):
		out.Code, out.Message = CodeInvalidAPIKey, "API key is invalid or expired"
	case containsAny(msg, "429", "rate_limit", "rate limit", "too many requests"):
		out.Code, out.Message, out.Retryable = CodeRateLimited, "API rate limit exceeded", true
	case containsAny(msg, "quota", "billing", "resource_exhausted"):
		out.Code, out.Message = CodeQuotaExceeded, "API quota exceeded"
	case containsAny(msg, "timeout", "deadline"):
		out.Code, out.Message, out.Retryable = CodeTimeout, "request timed out", true
	case containsAny(msg, "500", "502", "503", "overloaded", "unavailable"):
		out.Code, out.Message, out.Retryable = CodeAPIError, err.Error(), true
	default:
		out.Code, out.Message = CodeAPIError, err.Error()
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// SplitSystem separates system messages from the conversation. Multiple
// system messages are joined with a blank line.
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}
