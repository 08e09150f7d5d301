// Package openai adapts OpenAI's Chat Completions API to model.ChatModel.
package openai

import (
	"context"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/reviewloop/graph/model"
)

// DefaultModel is used when NewChatModel receives an empty model name.
const DefaultModel = "gpt-4o"

// ChatModel implements model.ChatModel for OpenAI chat completions.
//
// Example usage:
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini")
//	m.JSONMode = true
//	out, err := m.Chat(ctx, messages)
type ChatModel struct {
	modelName string
	client    completionsClient

	// JSONMode asks the API for a JSON object response. The prompt must
	// mention JSON for the API to accept it.
	JSONMode bool
}

type completionsClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// NewChatModel creates a ChatModel. An empty modelName selects DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{
		modelName: modelName,
		client:    &client.Chat.Completions,
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

	completion, err := m.client.New(ctx, m.buildParams(messages))
	if err != nil {
		return model.ChatOut{}, model.ClassifyError("openai", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return model.ChatOut{}, model.ClassifyError("openai", model.ErrEmptyResponse)
	}

	return model.ChatOut{
		Text: completion.Choices[0].Message.Content,
		Usage: model.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}, nil
}

func (m *ChatModel) buildParams(messages []model.Message) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(m.modelName),
	}
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			params.Messages = append(params.Messages, sdk.SystemMessage(msg.Content))
		case model.RoleAssistant:
			params.Messages = append(params.Messages, sdk.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, sdk.UserMessage(msg.Content))
		}
	}
	if m.JSONMode {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: sdk.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}
	return params
}
