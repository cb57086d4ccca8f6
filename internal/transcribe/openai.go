package transcribe

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIWhisper uses the OpenAI audio transcription API.
type OpenAIWhisper struct {
	client *openai.Client
	model  string
}

func NewOpenAIWhisper(apiKey, baseURL, model string) *OpenAIWhisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIWhisper{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIWhisper) Name() string {
	return "openai"
}

func (c *OpenAIWhisper) Transcribe(ctx context.Context, req Request) (string, error) {
	name := req.FileName
	if name == "" {
		name = "audio.webm"
	}
	areq := openai.AudioRequest{
		Model:    c.model,
		FilePath: name,
		Reader:   bytes.NewReader(req.Audio),
		Format:   openai.AudioResponseFormatJSON,
	}
	if req.Language != "" && req.Language != "auto" {
		areq.Language = req.Language
	}
	resp, err := c.client.CreateTranscription(ctx, areq)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
