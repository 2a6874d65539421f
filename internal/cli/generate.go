package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hmngo/vidcast/internal/config"
	"github.com/hmngo/vidcast/internal/gateway"
	"github.com/hmngo/vidcast/internal/imagegen"
	"github.com/hmngo/vidcast/internal/pipeline"
	"github.com/hmngo/vidcast/internal/tts"
	"github.com/hmngo/vidcast/internal/videogen"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [script_file]",
	Short: "Generate a video podcast from a segment script",
	Long: `Generate a full video podcast from a segment-format script.

The script is made of bracketed segments, each carrying a Visual: and a
Dialogue: label. Reference images are generated for every cast member and
the background, dialogue is synthesized per segment, and the resulting
clips are concatenated into one video. A looping GIF overlay and an SRT
sidecar are optional.

Examples:
  vidcast generate script.txt
  vidcast generate script.txt --duration 120 --overlay mascot.gif
  vidcast generate script.txt --animate --subtitles
  vidcast generate script.txt --image-mode standard --image-model imagen-4`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().
		String("output-dir", "outputs", "Base directory for run folders")
	generateCmd.Flags().
		String("name", "video_podcast", "Run name used in the output folder")
	generateCmd.Flags().
		Int("duration", pipeline.DefaultDuration, "Target video duration in seconds")
	generateCmd.Flags().
		String("image-mode", "chat", "Reference image endpoint (chat, standard)")
	generateCmd.Flags().
		Bool("animate", false, "Generate animated clips per segment instead of stills")
	generateCmd.Flags().
		String("overlay", "", "Looping GIF overlay pinned to the top-left corner")
	generateCmd.Flags().
		Bool("subtitles", false, "Write an SRT sidecar timed by clip durations")
	generateCmd.Flags().
		StringP("api-key", "k", "", "Gateway API key (or set GEMINI_API_KEY/AI_API_KEY env var)")
	generateCmd.Flags().
		String("tts-model", "", "Speech synthesis model override")
	generateCmd.Flags().
		String("image-model", "", "Image generation model override")
	generateCmd.Flags().
		String("video-model", "", "Video generation model override")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	scriptPath := args[0]
	ctx := context.Background()

	outputDir, _ := cmd.Flags().GetString("output-dir")
	name, _ := cmd.Flags().GetString("name")
	duration, _ := cmd.Flags().GetInt("duration")
	imageMode, _ := cmd.Flags().GetString("image-mode")
	animate, _ := cmd.Flags().GetBool("animate")
	overlayPath, _ := cmd.Flags().GetString("overlay")
	subtitles, _ := cmd.Flags().GetBool("subtitles")
	apiKey, _ := cmd.Flags().GetString("api-key")
	ttsModel, _ := cmd.Flags().GetString("tts-model")
	imageModel, _ := cmd.Flags().GetString("image-model")
	videoModel, _ := cmd.Flags().GetString("video-model")

	cfg, err := gatewayConfig(apiKey)
	if err != nil {
		return err
	}
	gw := gateway.NewClient(cfg)

	services := pipeline.Services{
		Speech: tts.NewClient(gw, ttsModel),
		Images: imagegen.NewClient(gw),
		Video:  videogen.NewClient(gw, videogen.Options{Model: videoModel}),
		Media:  pipeline.FFmpegAssembler{},
	}

	p, err := pipeline.New(pipeline.Config{
		ScriptPath:  scriptPath,
		OutputDir:   outputDir,
		RunName:     name,
		Duration:    duration,
		ImageMode:   pipeline.ImageMode(imageMode),
		ImageModel:  imageModel,
		Animate:     animate,
		OverlayPath: overlayPath,
		Subtitles:   subtitles,
		Logger:      logger,
	}, services)
	if err != nil {
		return err
	}

	logger.Infow("Starting video generation",
		"script", scriptPath,
		"duration", duration,
		"animate", animate,
	)

	result, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("video generation failed: %w", err)
	}

	fmt.Print(result.Summary)
	fmt.Printf("Video generated successfully: %s\n", result.FinalPath)
	if result.SubtitlePath != "" {
		fmt.Printf("  Subtitles: %s\n", result.SubtitlePath)
	}

	return nil
}

// flag key first, then the environment; the base URL always comes from the
// environment
func gatewayConfig(apiKey string) (config.Config, error) {
	if apiKey == "" {
		return config.FromEnv()
	}

	baseURL := os.Getenv("AI_API_BASE")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	return config.Config{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}
