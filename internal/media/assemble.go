package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/hmngo/vidcast/internal/ffmpeg"
)

// shared encoding profile; every intermediate clip must match it so the
// concat demuxer can stream-copy
const (
	FrameWidth      = 1920
	FrameHeight     = 1080
	ClipFrameRate   = 24
	FinalFrameRate  = 30
	AudioSampleRate = 24000
)

// overlay height as a fraction of the main video height
const overlayHeightRatio = 0.15

// renders a still image into an H.264 clip of the given duration. When
// audioPath is empty the clip carries a silent mono track so it stays
// concatenable with voiced clips.
func ClipFromImage(
	ctx context.Context,
	imagePath, audioPath, outputPath string,
	duration time.Duration,
) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		return fmt.Errorf("image file not found: %s", imagePath)
	}
	if duration <= 0 {
		return fmt.Errorf("clip duration must be positive, got %v", duration)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	video := fitFrame(ffmpeg.Input(imagePath, ffmpeg.KwArgs{
		"loop":      1,
		"framerate": ClipFrameRate,
	}))

	audio, err := audioInput(audioPath)
	if err != nil {
		return err
	}

	kwargs := clipKwArgs()
	kwargs["tune"] = "stillimage"
	kwargs["t"] = duration.Seconds()
	kwargs["shortest"] = ""

	err = ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("clip encoding failed: %w", err)
	}

	return nil
}

// re-encodes an arbitrary clip to the shared profile, replacing its audio
// track with audioPath (or a silent one when empty). A non-positive duration
// keeps the source length.
func NormalizeClip(
	ctx context.Context,
	inputPath, audioPath, outputPath string,
	duration time.Duration,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("clip not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	video := fitFrame(ffmpeg.Input(inputPath))

	audio, err := audioInput(audioPath)
	if err != nil {
		return err
	}

	kwargs := clipKwArgs()
	kwargs["shortest"] = ""
	if duration > 0 {
		kwargs["t"] = duration.Seconds()
	}

	err = ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("clip normalization failed: %w", err)
	}

	return nil
}

// joins clips with the concat demuxer via a generated list file. Inputs must
// share one encoding profile; ClipFromImage and NormalizeClip guarantee that.
func Concat(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}
	for _, p := range clipPaths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("clip not found: %s", p)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	listPath, err := writeConcatList(clipPaths)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(listPath) }()

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("concatenation failed: %w", err)
	}

	return nil
}

// loops an animated GIF in the top-left corner of a video, scaled to 15% of
// the video height, and re-encodes at the final frame rate.
func OverlayGIF(ctx context.Context, videoPath, gifPath, outputPath string) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}
	if _, err := os.Stat(gifPath); os.IsNotExist(err) {
		return fmt.Errorf("gif overlay not found: %s", gifPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	probe, err := Probe(videoPath)
	if err != nil {
		return err
	}
	stream, ok := probe.VideoStream()
	if !ok {
		return fmt.Errorf("no video stream in %s", videoPath)
	}
	overlayHeight := int(float64(stream.Height) * overlayHeightRatio)
	if overlayHeight < 2 {
		overlayHeight = 2
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	main := ffmpeg.Input(videoPath)
	gif := ffmpeg.Input(gifPath, ffmpeg.KwArgs{"stream_loop": -1}).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("-2:%d", overlayHeight)})

	overlaid := ffmpeg.Filter(
		[]*ffmpeg.Stream{main, gif},
		"overlay",
		ffmpeg.Args{"0:0"},
		ffmpeg.KwArgs{"shortest": 1},
	)

	err = ffmpeg.Output(
		[]*ffmpeg.Stream{overlaid, main.Get("a")},
		outputPath,
		ffmpeg.KwArgs{
			"c:v":     "libx264",
			"pix_fmt": "yuv420p",
			"r":       FinalFrameRate,
			"c:a":     "aac",
		},
	).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("overlay failed: %w", err)
	}

	return nil
}

// Finalize re-encodes a combined video at the delivery frame rate.
func Finalize(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(inputPath).
		Output(outputPath, ffmpeg.KwArgs{
			"c:v":     "libx264",
			"pix_fmt": "yuv420p",
			"r":       FinalFrameRate,
			"c:a":     "aac",
		}).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("finalization failed: %w", err)
	}

	return nil
}

// settings for audio transcoding
type TranscodeOptions struct {
	Format     string // Output format (mp3, aac, etc.)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate (e.g., "64k", "128k")
}

// defaults for podcast distribution
func DefaultTranscodeOptions() TranscodeOptions {
	return TranscodeOptions{
		Format:     "mp3",
		SampleRate: AudioSampleRate,
		Channels:   1,
		Bitrate:    "128k",
	}
}

// transcodes an audio file with the given options
func TranscodeAudio(
	ctx context.Context,
	inputPath, outputPath string,
	opts TranscodeOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	outputDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := ffmpeg.KwArgs{
		"vn": "",              // No video
		"ar": opts.SampleRate, // Sample rate
		"ac": opts.Channels,   // Channels
		"y":  "",              // Overwrite output
	}

	switch opts.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return err
	}

	err = ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		return fmt.Errorf("transcoding failed: %w", err)
	}

	return nil
}

// scales and letterboxes a video stream to the shared frame size
func fitFrame(s *ffmpeg.Stream) *ffmpeg.Stream {
	return s.
		Filter("scale", ffmpeg.Args{
			fmt.Sprintf("%d:%d", FrameWidth, FrameHeight),
		}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{
			fmt.Sprintf("%d:%d:(ow-iw)/2:(oh-ih)/2", FrameWidth, FrameHeight),
		}).
		Filter("setsar", ffmpeg.Args{"1"})
}

// silent lavfi source when no dialogue track exists
func audioInput(audioPath string) (*ffmpeg.Stream, error) {
	if audioPath == "" {
		src := fmt.Sprintf(
			"anullsrc=channel_layout=mono:sample_rate=%d",
			AudioSampleRate,
		)
		return ffmpeg.Input(src, ffmpeg.KwArgs{"f": "lavfi"}), nil
	}
	if _, err := os.Stat(audioPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", audioPath)
	}
	return ffmpeg.Input(audioPath), nil
}

// output arguments shared by every intermediate clip
func clipKwArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
		"r":       ClipFrameRate,
		"c:a":     "aac",
		"b:a":     "192k",
		"ar":      AudioSampleRate,
		"ac":      1,
	}
}

// concat demuxer list file; single quotes in paths escaped per the demuxer's
// quoting rules
func concatListContent(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func writeConcatList(clipPaths []string) (string, error) {
	abs := make([]string, 0, len(clipPaths))
	for _, p := range clipPaths {
		a, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to resolve clip path %s: %w", p, err)
		}
		abs = append(abs, a)
	}

	tmp, err := os.CreateTemp("", "vidcast-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create concat list: %w", err)
	}
	if _, err := tmp.WriteString(concatListContent(abs)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close concat list: %w", err)
	}
	return tmp.Name(), nil
}
