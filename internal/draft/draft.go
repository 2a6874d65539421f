package draft

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// script layout produced by a draft
type Style string

const (
	// bracketed [Segment N] blocks with Visual and Dialogue labels
	StyleSegments Style = "segments"
	// bulleted dialogue lines with named speakers
	StyleDialogue Style = "dialogue"
)

// interface for script drafting
type Writer interface {
	Draft(ctx context.Context, topic string) (string, error)
}

// drafting service provider
type Provider string

const (
	ProviderGateway   Provider = "gateway"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

type Options struct {
	Style        Style
	Model        string
	BaseURL      string   // gateway provider only
	Language     string   // output language name (default Vietnamese)
	SegmentCount int      // segments per script (default 30)
	Characters   []string // visual tokens for segment scripts
	Speakers     []string // display names for dialogue scripts
	Prompt       string   // extra instructions appended to the prompt
}

// creates a Writer based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Writer, error) {
	switch opts.Style {
	case StyleSegments, StyleDialogue:
	case "":
		opts.Style = StyleSegments
	default:
		return nil, fmt.Errorf("unsupported script style: %s", opts.Style)
	}

	switch provider {
	case ProviderGateway:
		return NewGatewayWriter(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiWriter(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicWriter(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported draft provider: %s", provider)
	}
}

// BuildPrompt creates the drafting prompt for LLM providers
func BuildPrompt(opts Options, topic string) string {
	var sb strings.Builder

	language := opts.Language
	if language == "" {
		language = "Vietnamese"
	}

	switch opts.Style {
	case StyleDialogue:
		speakers := opts.Speakers
		if len(speakers) == 0 {
			speakers = []string{"Chuyên gia Lan", "bà Nhung"}
		}

		sb.WriteString(fmt.Sprintf(
			"Write a %s podcast conversation between %s about: %s\n\n",
			language,
			strings.Join(speakers, " and "),
			topic,
		))

		sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
		sb.WriteString("1. Format every spoken line exactly as:\n")
		for _, speaker := range speakers {
			sb.WriteString(fmt.Sprintf(
				"   * **Lời thoại (%s):** <spoken text>\n",
				speaker,
			))
		}
		sb.WriteString("2. Alternate speakers naturally and keep lines conversational.\n")
		sb.WriteString(
			"3. A line may open with a short parenthetical stage direction.\n",
		)
		sb.WriteString("4. Do not add headings, numbering, or markdown formatting.\n")

	default:
		count := opts.SegmentCount
		if count <= 0 {
			count = 30
		}
		characters := opts.Characters
		if len(characters) == 0 {
			characters = []string{"nguoi_cao_tuoi", "chuyen_gia"}
		}

		sb.WriteString(fmt.Sprintf(
			"Write a %s video podcast script about: %s\n\n",
			language,
			topic,
		))

		sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
		sb.WriteString(fmt.Sprintf(
			"1. Produce exactly %d segments, numbered from 1.\n",
			count,
		))
		sb.WriteString("2. Format each segment exactly as:\n")
		sb.WriteString("   [Segment <number>]\n")
		sb.WriteString("   Visual: <scene description>\n")
		sb.WriteString("   Dialogue: <spoken text>\n")
		sb.WriteString(fmt.Sprintf(
			"3. Name one of %s in each Visual line so the on-screen speaker is clear.\n",
			strings.Join(characters, ", "),
		))
		sb.WriteString(
			"4. Size each Dialogue to roughly eight seconds of speech; leave it empty for establishing shots.\n",
		)
		sb.WriteString("5. Do not add any explanation or markdown formatting.\n")
	}

	if opts.Prompt != "" {
		sb.WriteString(
			fmt.Sprintf("\nAdditional instructions: %s\n", opts.Prompt),
		)
	}

	return sb.String()
}

// strips markdown code fences models sometimes wrap scripts in
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)

	fenceRegex := regexp.MustCompile("```[a-z]*\\s*")
	s = fenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")

	return strings.TrimSpace(s)
}
