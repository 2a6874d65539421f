package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hmngo/vidcast/internal/cast"
	"github.com/hmngo/vidcast/internal/imagegen"
	"github.com/hmngo/vidcast/internal/logging"
	"github.com/hmngo/vidcast/internal/media"
	"github.com/hmngo/vidcast/internal/outputs"
	"github.com/hmngo/vidcast/internal/tts"
	"github.com/hmngo/vidcast/internal/videogen"
)

const (
	// DefaultDuration is the target video length in seconds.
	DefaultDuration = 240

	// segments without audio fall back to this clip length
	defaultClipSeconds  = 8
	defaultClipDuration = defaultClipSeconds * time.Second

	leadSilence  = 500 * time.Millisecond
	pauseSilence = 750 * time.Millisecond
)

// how reference images are generated
type ImageMode string

const (
	ImageModeChat     ImageMode = "chat"
	ImageModeStandard ImageMode = "standard"
)

// Config carries one run's settings through every stage.
type Config struct {
	ScriptPath string
	OutputDir  string
	RunName    string

	// segment-video settings
	Duration    int // target seconds
	ImageMode   ImageMode
	ImageModel  string
	Animate     bool
	OverlayPath string // looping GIF; empty skips the overlay stage
	Subtitles   bool

	// dialogue settings
	Voices       map[string]string // speaker overrides for the built-in map
	MP3          bool
	MultiSpeaker bool

	Cast   *cast.Cast
	Logger *logging.Logger
}

// SpeechSynthesizer produces raw PCM from text.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	SynthesizeMultiSpeaker(
		ctx context.Context,
		text string,
		speakers []tts.SpeakerVoice,
	) ([]byte, error)
}

// ImageGenerator persists generated reference images.
type ImageGenerator interface {
	GenerateToFile(ctx context.Context, req imagegen.Request, outputPath string) error
	GenerateChatToFile(ctx context.Context, prompt, model, outputPath string) error
}

// ClipGenerator produces a video clip through the long-running endpoint.
type ClipGenerator interface {
	GenerateClip(ctx context.Context, req videogen.Request, outputPath string) error
}

// Assembler covers the ffmpeg work the pipelines depend on.
type Assembler interface {
	ClipFromImage(
		ctx context.Context,
		imagePath, audioPath, outputPath string,
		duration time.Duration,
	) error
	NormalizeClip(
		ctx context.Context,
		inputPath, audioPath, outputPath string,
		duration time.Duration,
	) error
	Concat(ctx context.Context, clipPaths []string, outputPath string) error
	OverlayGIF(ctx context.Context, videoPath, gifPath, outputPath string) error
	Finalize(ctx context.Context, inputPath, outputPath string) error
	Duration(filePath string) (time.Duration, error)
	TranscodeAudio(
		ctx context.Context,
		inputPath, outputPath string,
		opts media.TranscodeOptions,
	) error
}

// Services bundles the remote clients and the assembler a pipeline uses.
type Services struct {
	Speech SpeechSynthesizer
	Images ImageGenerator
	Video  ClipGenerator
	Media  Assembler
}

// FFmpegAssembler is the Assembler backed by the media package.
type FFmpegAssembler struct{}

func (FFmpegAssembler) ClipFromImage(
	ctx context.Context,
	imagePath, audioPath, outputPath string,
	duration time.Duration,
) error {
	return media.ClipFromImage(ctx, imagePath, audioPath, outputPath, duration)
}

func (FFmpegAssembler) NormalizeClip(
	ctx context.Context,
	inputPath, audioPath, outputPath string,
	duration time.Duration,
) error {
	return media.NormalizeClip(ctx, inputPath, audioPath, outputPath, duration)
}

func (FFmpegAssembler) Concat(
	ctx context.Context,
	clipPaths []string,
	outputPath string,
) error {
	return media.Concat(ctx, clipPaths, outputPath)
}

func (FFmpegAssembler) OverlayGIF(
	ctx context.Context,
	videoPath, gifPath, outputPath string,
) error {
	return media.OverlayGIF(ctx, videoPath, gifPath, outputPath)
}

func (FFmpegAssembler) Finalize(ctx context.Context, inputPath, outputPath string) error {
	return media.Finalize(ctx, inputPath, outputPath)
}

func (FFmpegAssembler) Duration(filePath string) (time.Duration, error) {
	return media.Duration(filePath)
}

func (FFmpegAssembler) TranscodeAudio(
	ctx context.Context,
	inputPath, outputPath string,
	opts media.TranscodeOptions,
) error {
	return media.TranscodeAudio(ctx, inputPath, outputPath, opts)
}

// Pipeline drives the assembly stages over a shared run context.
type Pipeline struct {
	config   Config
	services Services
	outputs  *outputs.Manager
	logger   *logging.Logger
}

func New(config Config, services Services) (*Pipeline, error) {
	if config.ScriptPath == "" {
		return nil, fmt.Errorf("script path is required")
	}

	switch config.ImageMode {
	case "":
		config.ImageMode = ImageModeChat
	case ImageModeChat, ImageModeStandard:
	default:
		return nil, fmt.Errorf("unsupported image mode: %s", config.ImageMode)
	}

	if config.Duration <= 0 {
		config.Duration = DefaultDuration
	}
	if config.RunName == "" {
		config.RunName = "run"
	}
	if config.Cast == nil {
		config.Cast = cast.Default()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}
	if services.Media == nil {
		services.Media = FFmpegAssembler{}
	}

	manager, err := outputs.NewManager(config.OutputDir)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:   config,
		services: services,
		outputs:  manager,
		logger:   config.Logger,
	}, nil
}

// Result reports where a finished run left its artifacts.
type Result struct {
	Run          *outputs.Run
	FinalPath    string
	SubtitlePath string
	Summary      string
}
