package agent

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"sheetwise/internal/config"
)

// ChatService is the one slice of the OpenAI client the loop needs. Tests
// substitute scripted implementations.
type ChatService interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openAIChat struct {
	client openai.Client
}

// NewOpenAIChat builds a ChatService backed by the chat completions API.
func NewOpenAIChat(cfg config.Config) ChatService {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIChat{client: openai.NewClient(opts...)}
}

func (c *openAIChat) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
