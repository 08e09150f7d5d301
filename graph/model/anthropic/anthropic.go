// Package anthropic adapts Anthropic's Claude API to model.ChatModel.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/reviewloop/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "claude-3-5-sonnet-20241022"

// DefaultMaxTokens bounds the length of a single reply.
const DefaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Anthropic's Messages API.
//
// System messages are lifted into the request's system parameter, the rest
// of the conversation is sent in order.
//
// Example usage:
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, messages)
type ChatModel struct {
	modelName string
	client    messagesClient
}

// messagesClient is the subset of the SDK used here, so tests can fake it.
type messagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// NewChatModel creates a ChatModel. An empty modelName selects DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		modelName: modelName,
		client:    &client.Messages,
	}
}

// ModelName returns the configured model.
func (m *ChatModel) ModelName() string {
	return m.modelName
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := buildParams(m.modelName, messages)
	message, err := m.client.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, model.ClassifyError("anthropic", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return model.ChatOut{}, model.ClassifyError("anthropic", model.ErrEmptyResponse)
	}

	return model.ChatOut{
		Text: text.String(),
		Usage: model.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}, nil
}

func buildParams(modelName string, messages []model.Message) sdk.MessageNewParams {
	system, conversation := model.SplitSystem(messages)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelName),
		MaxTokens: DefaultMaxTokens,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	for _, msg := range conversation {
		block := sdk.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(block))
	}
	return params
}
