package draft

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// implements Writer using Google Gemini
type GeminiWriter struct {
	client  *genai.Client
	model   string
	options Options
}

func NewGeminiWriter(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*GeminiWriter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiWriter{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (w *GeminiWriter) Draft(
	ctx context.Context,
	topic string,
) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", fmt.Errorf("topic is required")
	}

	prompt := BuildPrompt(w.options, topic)

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := w.client.Models.GenerateContent(ctx, w.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("drafting failed: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var responseText string
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				responseText += part.Text
			}
		}
		if responseText != "" {
			break
		}
	}

	if responseText == "" {
		return "", fmt.Errorf("no text in Gemini response")
	}

	return cleanResponse(responseText), nil
}

func (w *GeminiWriter) Close() error {
	return nil
}
