// Package google adapts Google's Gemini API to model.ChatModel.
package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/reviewloop/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "gemini-1.5-flash"

// ChatModel implements model.ChatModel for Gemini.
//
// The last message is sent with SendMessage; earlier messages become the
// chat session history. System messages become the system instruction.
//
// Example usage:
//
//	m, err := google.NewChatModel(ctx, os.Getenv("GOOGLE_API_KEY"), "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
type ChatModel struct {
	modelName string
	client    generator
	closer    func() error
}

// generator hides the genai client so tests can substitute it.
type generator interface {
	generate(ctx context.Context, modelName, system string, history []*genai.Content, last genai.Part) (*genai.GenerateContentResponse, error)
}

// NewChatModel creates a ChatModel backed by a new genai client.
func NewChatModel(ctx context.Context, apiKey, modelName string) (*ChatModel, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &ChatModel{
		modelName: modelName,
		client:    &sdkGenerator{client: client},
		closer:    client.Close,
	}, nil
}

// ModelName returns the configured model.
func (m *ChatModel) ModelName() string {
	return m.modelName
}

// Close releases the underlying client.
func (m *ChatModel) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer()
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	system, conversation := model.SplitSystem(messages)
	if len(conversation) == 0 {
		return model.ChatOut{}, fmt.Errorf("google: at least one non-system message is required")
	}

	history := make([]*genai.Content, 0, len(conversation)-1)
	for _, msg := range conversation[:len(conversation)-1] {
		history = append(history, &genai.Content{
			Role:  roleOf(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	last := genai.Text(conversation[len(conversation)-1].Content)

	resp, err := m.client.generate(ctx, m.modelName, system, history, last)
	if err != nil {
		return model.ChatOut{}, model.ClassifyError("google", err)
	}

	text := responseText(resp)
	if text == "" {
		return model.ChatOut{}, model.ClassifyError("google", model.ErrEmptyResponse)
	}

	out := model.ChatOut{Text: text}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func roleOf(role string) string {
	if role == model.RoleAssistant {
		return "model"
	}
	return "user"
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

type sdkGenerator struct {
	client *genai.Client
}

func (g *sdkGenerator) generate(ctx context.Context, modelName, system string, history []*genai.Content, last genai.Part) (*genai.GenerateContentResponse, error) {
	gm := g.client.GenerativeModel(modelName)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	session := gm.StartChat()
	session.History = history
	return session.SendMessage(ctx, last)
}
