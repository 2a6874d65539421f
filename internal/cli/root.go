package cli

import (
	"github.com/hmngo/vidcast/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vidcast",
	Short: "AI-powered video podcast assembler",
	Long: `Vidcast turns a text script into a finished video podcast.

It generates reference art and speech through an AI gateway, assembles
per-segment clips with ffmpeg, and stitches them into a single video.
It can also produce audio-only dialogue podcasts or draft the script
itself.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logger = logging.NewLogger(verbose)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
}
