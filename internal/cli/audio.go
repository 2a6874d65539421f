package cli

import (
	"context"
	"fmt"

	"github.com/hmngo/vidcast/internal/gateway"
	"github.com/hmngo/vidcast/internal/pipeline"
	"github.com/hmngo/vidcast/internal/tts"
	"github.com/spf13/cobra"
)

var audioCmd = &cobra.Command{
	Use:   "audio [script_file]",
	Short: "Generate an audio-only dialogue podcast",
	Long: `Generate an audio podcast from a dialogue-format script.

Each markdown bullet of the form "*   **Lời thoại (Speaker):** text" becomes
one synthesized line. Lines are stitched into a single waveform with a fixed
lead-in and inter-line pauses. With --multi-speaker the whole conversation is
synthesized in one call and the remote model handles turn-taking.

Examples:
  vidcast audio script.txt
  vidcast audio script.txt --mp3
  vidcast audio script.txt --voices "Chuyên gia Lan=achernar,bà Nhung=gacrux"
  vidcast audio script.txt --multi-speaker`,
	Args: cobra.ExactArgs(1),
	RunE: runAudio,
}

func init() {
	rootCmd.AddCommand(audioCmd)

	audioCmd.Flags().
		String("output-dir", "outputs", "Base directory for run folders")
	audioCmd.Flags().
		String("name", "podcast", "Run name used in the output folder")
	audioCmd.Flags().
		StringToString("voices", nil, "Speaker=voice overrides for the built-in map")
	audioCmd.Flags().
		Bool("mp3", false, "Transcode the final waveform to MP3")
	audioCmd.Flags().
		Bool("multi-speaker", false, "Synthesize the whole conversation in one call")
	audioCmd.Flags().
		StringP("api-key", "k", "", "Gateway API key (or set GEMINI_API_KEY/AI_API_KEY env var)")
	audioCmd.Flags().
		String("tts-model", "", "Speech synthesis model override")
}

func runAudio(cmd *cobra.Command, args []string) error {
	scriptPath := args[0]
	ctx := context.Background()

	outputDir, _ := cmd.Flags().GetString("output-dir")
	name, _ := cmd.Flags().GetString("name")
	voices, _ := cmd.Flags().GetStringToString("voices")
	mp3, _ := cmd.Flags().GetBool("mp3")
	multiSpeaker, _ := cmd.Flags().GetBool("multi-speaker")
	apiKey, _ := cmd.Flags().GetString("api-key")
	ttsModel, _ := cmd.Flags().GetString("tts-model")

	cfg, err := gatewayConfig(apiKey)
	if err != nil {
		return err
	}
	gw := gateway.NewClient(cfg)

	services := pipeline.Services{
		Speech: tts.NewClient(gw, ttsModel),
		Media:  pipeline.FFmpegAssembler{},
	}

	p, err := pipeline.New(pipeline.Config{
		ScriptPath:   scriptPath,
		OutputDir:    outputDir,
		RunName:      name,
		Voices:       voices,
		MP3:          mp3,
		MultiSpeaker: multiSpeaker,
		Logger:       logger,
	}, services)
	if err != nil {
		return err
	}

	logger.Infow("Starting podcast generation",
		"script", scriptPath,
		"mp3", mp3,
		"multi_speaker", multiSpeaker,
	)

	result, err := p.RunPodcast(ctx)
	if err != nil {
		return fmt.Errorf("podcast generation failed: %w", err)
	}

	fmt.Print(result.Summary)
	fmt.Printf("Podcast generated successfully: %s\n", result.FinalPath)

	return nil
}
