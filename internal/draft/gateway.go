package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Writer using the AI gateway's chat completions endpoint
type GatewayWriter struct {
	client  openai.Client
	model   string
	options Options
}

func NewGatewayWriter(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*GatewayWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"),
	)

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GatewayWriter{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (w *GatewayWriter) Draft(
	ctx context.Context,
	topic string,
) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	prompt := BuildPrompt(w.options, topic)

	completion, err := w.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: w.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("drafting failed: %w", err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from gateway")
	}

	responseText := completion.Choices[0].Message.Content
	if responseText == "" {
		return "", fmt.Errorf("no text in gateway response")
	}

	return cleanResponse(responseText), nil
}

func (w *GatewayWriter) Close() error {
	return nil
}
