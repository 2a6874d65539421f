package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// implements Writer using Anthropic Claude
type AnthropicWriter struct {
	client  anthropic.Client
	model   anthropic.Model
	options Options
}

func NewAnthropicWriter(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*AnthropicWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicWriter{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (w *AnthropicWriter) Draft(
	ctx context.Context,
	topic string,
) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	prompt := BuildPrompt(w.options, topic)

	message, err := w.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     w.model,
			MaxTokens: 8192,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("drafting failed: %w", err)
	}

	if message == nil || len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	if responseText == "" {
		return "", fmt.Errorf("no text in Anthropic response")
	}

	return cleanResponse(responseText), nil
}

func (w *AnthropicWriter) Close() error {
	return nil
}
