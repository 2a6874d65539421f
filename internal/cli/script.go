package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmngo/vidcast/internal/config"
	"github.com/hmngo/vidcast/internal/draft"
	"github.com/hmngo/vidcast/internal/outputs"
	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Draft a podcast script with AI",
	Long: `Draft a podcast script for a topic using an AI model.

The segments format produces bracketed [Segment N] blocks with Visual and
Dialogue labels, ready for the generate command. The dialogue format produces
bulleted speaker lines, ready for the audio command.

Examples:
  vidcast script --topic "an toàn thực phẩm"
  vidcast script --topic "smart home" --format dialogue --speakers "Anna,Ben"
  vidcast script --topic "tiết kiệm điện" --provider anthropic -o script.txt`,
	Args: cobra.NoArgs,
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(scriptCmd)

	scriptCmd.Flags().
		StringP("topic", "t", "", "Topic for the script (required)")
	scriptCmd.Flags().
		String("format", "segments", "Script format (segments, dialogue)")
	scriptCmd.Flags().
		String("provider", "gateway", "Drafting provider (gateway, gemini, anthropic)")
	scriptCmd.Flags().
		String("model", "", "Model to use for drafting (provider-specific, uses sensible defaults)")
	scriptCmd.Flags().
		Int("segments", 30, "Number of segments for the segments format")
	scriptCmd.Flags().
		StringSlice("speakers", nil, "Speaker names for the dialogue format")
	scriptCmd.Flags().
		String("language", "Vietnamese", "Language the script is written in")
	scriptCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/ANTHROPIC_API_KEY env var)")
	scriptCmd.Flags().
		String("output-dir", "outputs", "Base directory for run folders")
	scriptCmd.Flags().
		String("name", "script", "Run name used in the output folder")

	_ = scriptCmd.MarkFlagRequired("topic")
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	topic, _ := cmd.Flags().GetString("topic")
	formatStr, _ := cmd.Flags().GetString("format")
	providerStr, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	segments, _ := cmd.Flags().GetInt("segments")
	speakers, _ := cmd.Flags().GetStringSlice("speakers")
	language, _ := cmd.Flags().GetString("language")
	apiKey, _ := cmd.Flags().GetString("api-key")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	name, _ := cmd.Flags().GetString("name")
	outputPath, _ := cmd.Flags().GetString("output")

	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic is required")
	}

	provider := draft.Provider(providerStr)

	if apiKey == "" {
		switch provider {
		case draft.ProviderGateway:
			apiKey = os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				apiKey = os.Getenv("AI_API_KEY")
			}
		case draft.ProviderGemini:
			apiKey = os.Getenv("GEMINI_API_KEY")
		case draft.ProviderAnthropic:
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if apiKey == "" {
		var envVar string
		switch provider {
		case draft.ProviderGateway, draft.ProviderGemini:
			envVar = "GEMINI_API_KEY"
		case draft.ProviderAnthropic:
			envVar = "ANTHROPIC_API_KEY"
		default:
			envVar = "API_KEY"
		}
		return fmt.Errorf(
			"API key is required: use --api-key flag or set %s environment variable",
			envVar,
		)
	}

	opts := draft.Options{
		Style:        draft.Style(formatStr),
		Model:        model,
		Language:     language,
		SegmentCount: segments,
		Speakers:     speakers,
	}
	if provider == draft.ProviderGateway {
		opts.BaseURL = strings.TrimRight(os.Getenv("AI_API_BASE"), "/")
		if opts.BaseURL == "" {
			opts.BaseURL = config.DefaultBaseURL
		}
	}

	logger.Infow("Starting script drafting",
		"topic", topic,
		"format", formatStr,
		"provider", providerStr,
		"model", model,
	)

	writer, err := draft.Factory(ctx, provider, apiKey, opts)
	if err != nil {
		return fmt.Errorf("failed to create script writer: %w", err)
	}

	text, err := writer.Draft(ctx, topic)
	if err != nil {
		return fmt.Errorf("script drafting failed: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write script: %w", err)
		}
		absOutput, _ := filepath.Abs(outputPath)
		fmt.Printf("Script drafted successfully: %s\n", absOutput)
		return nil
	}

	manager, err := outputs.NewManager(outputDir)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}
	run, err := manager.CreateRun(name)
	if err != nil {
		return fmt.Errorf("failed to create run folder: %w", err)
	}

	draftPath := filepath.Join(run.IntermediateDir(), "script.txt")
	if err := os.WriteFile(draftPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}

	finalPath, err := manager.SaveFinal(run, draftPath, outputs.TypeText)
	if err != nil {
		return fmt.Errorf("failed to register script: %w", err)
	}
	if _, err := manager.WriteMetadata(run, finalPath, outputs.TypeText); err != nil {
		logger.Warnw("Failed to write metadata", "error", err)
	}

	fmt.Print(manager.Summary(run.Number))
	fmt.Printf("Script drafted successfully: %s\n", finalPath)

	return nil
}
