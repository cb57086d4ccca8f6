package summarize

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicEngine uses the Anthropic messages API.
type AnthropicEngine struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicEngine(apiKey, baseURL, model string) *AnthropicEngine {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicEngine{client: anthropic.NewClient(apiKey, opts...), model: model}
}

func (a *AnthropicEngine) Name() string {
	return "anthropic"
}

func (a *AnthropicEngine) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(a.model),
		System:    system,
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
