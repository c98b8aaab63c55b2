package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/valpere/flowsketch/internal/diagram"
)

// OpenAIClient implements Generator using the official openai-go SDK
// (chat completions).
type OpenAIClient struct {
	model       string
	temperature float64
	opts        []option.RequestOption
}

// NewOpenAIClient validates cfg and builds a client. A missing API key is a
// ConfigError so the caller can report it before any generation attempt.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, &diagram.ConfigError{Reason: "OPENAI_API_KEY is not set"}
	}
	if cfg.Model == "" {
		return nil, &diagram.ConfigError{Reason: "model name is required"}
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		opts:        opts,
	}, nil
}

// Generate sends prompt as a single user message and returns the raw
// completion text. Empty message content is returned as-is; classifying it
// is the validator's job, not the client's.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	client := openai.NewClient(c.opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
