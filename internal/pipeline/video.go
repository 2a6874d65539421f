package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hmngo/vidcast/internal/cast"
	"github.com/hmngo/vidcast/internal/imagegen"
	"github.com/hmngo/vidcast/internal/outputs"
	"github.com/hmngo/vidcast/internal/script"
	"github.com/hmngo/vidcast/internal/subtitle"
	"github.com/hmngo/vidcast/internal/videogen"
	"github.com/hmngo/vidcast/internal/wav"
)

// style prefix shared by every character portrait so references match
const characterStyle = `Vietnamese person, Southeast Asian features, warm tan skin,
almond eyes, straight black hair, Vietnamese styling, red #DA251D/gold #FFCD00,
bình dị style, soft lighting, 1920x1080, portrait, NO TEXT`

const backgroundStyle = "Vietnamese studio podcast background, warm lighting, professional, 1920x1080, NO TEXT"

// generated reference art for one run
type referenceSet struct {
	characters map[string]string // member key -> portrait path
	background string
}

// image backing a segment's frame; empty when nothing was generated
func (r referenceSet) forVisual(c *cast.Cast, visual string) string {
	if member, ok := c.MemberFor(visual); ok {
		if path, ok := r.characters[member.Key]; ok {
			return path
		}
	}
	return r.background
}

// Run executes the segment-video pipeline: reference art, per-segment audio
// and clips, concatenation, overlay and output registration. Per-segment
// failures degrade to silent or still-image clips; stage failures abort.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.services.Speech == nil || p.services.Images == nil {
		return nil, fmt.Errorf("speech and image services are required")
	}
	if p.config.Animate && p.services.Video == nil {
		return nil, fmt.Errorf("video generation service is required for animate mode")
	}

	if _, err := os.Stat(p.config.ScriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("script file not found: %s", p.config.ScriptPath)
	}
	if p.config.OverlayPath != "" {
		if _, err := os.Stat(p.config.OverlayPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("overlay file not found: %s", p.config.OverlayPath)
		}
	}

	data, err := os.ReadFile(p.config.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	segments := script.ParseSegments(string(data))
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments found in script: %s", p.config.ScriptPath)
	}

	run, err := p.outputs.CreateRun(p.config.RunName)
	if err != nil {
		return nil, err
	}

	segmentCount := (p.config.Duration + defaultClipSeconds - 1) / defaultClipSeconds
	p.logger.Infow("starting video pipeline",
		"script", p.config.ScriptPath,
		"parsed", len(segments),
		"segments", segmentCount,
		"run", run.Number,
	)

	refs := p.generateReferences(ctx, run)

	clips := make([]string, 0, segmentCount)
	cues := make([]subtitle.Cue, 0, segmentCount)
	var timeline time.Duration

	for i := 1; i <= segmentCount; i++ {
		segment := segments[i]
		dialogue := strings.TrimSpace(segment.Dialogue)

		var audioPath string
		if dialogue != "" {
			audioPath = p.synthesizeSegment(ctx, run, i, segment.Visual, dialogue)
		}

		duration := defaultClipDuration
		if audioPath != "" {
			d, err := p.services.Media.Duration(audioPath)
			if err != nil {
				p.logger.Warnw("audio probe failed, using silent clip",
					"segment", i, "error", err)
				audioPath = ""
			} else {
				duration = d
			}
		}

		clipPath := filepath.Join(run.IntermediateDir(), fmt.Sprintf("video_%d.mp4", i))
		built := false
		if p.config.Animate {
			if err := p.animateSegment(ctx, run, i, segment, audioPath, clipPath, duration); err != nil {
				p.logger.Warnw("animated clip failed, falling back to still image",
					"segment", i, "error", err)
			} else {
				built = true
			}
		}
		if !built {
			imagePath := refs.forVisual(p.config.Cast, segment.Visual)
			if imagePath == "" {
				return nil, fmt.Errorf("no reference image available for segment %d", i)
			}
			if err := p.services.Media.ClipFromImage(ctx, imagePath, audioPath, clipPath, duration); err != nil {
				return nil, fmt.Errorf("failed to build clip for segment %d: %w", i, err)
			}
		}
		clips = append(clips, clipPath)

		if p.config.Subtitles {
			clipDuration, err := p.services.Media.Duration(clipPath)
			if err != nil {
				clipDuration = duration
			}
			if dialogue != "" {
				cues = append(cues, subtitle.Cue{
					StartTime: timeline,
					EndTime:   timeline + clipDuration,
					Text:      dialogue,
				})
			}
			timeline += clipDuration
		}
	}

	combinedPath := filepath.Join(run.IntermediateDir(), "combined.mp4")
	if err := p.services.Media.Concat(ctx, clips, combinedPath); err != nil {
		return nil, fmt.Errorf("failed to combine clips: %w", err)
	}

	deliveryPath := filepath.Join(run.IntermediateDir(), "final_video.mp4")
	if p.config.OverlayPath != "" {
		if err := p.services.Media.OverlayGIF(ctx, combinedPath, p.config.OverlayPath, deliveryPath); err != nil {
			return nil, fmt.Errorf("failed to apply overlay: %w", err)
		}
	} else {
		if err := p.services.Media.Finalize(ctx, combinedPath, deliveryPath); err != nil {
			return nil, fmt.Errorf("failed to finalize video: %w", err)
		}
	}

	finalPath, err := p.outputs.SaveFinal(run, deliveryPath, outputs.TypeVideo)
	if err != nil {
		return nil, fmt.Errorf("failed to register final video: %w", err)
	}
	if _, err := p.outputs.WriteMetadata(run, finalPath, outputs.TypeVideo); err != nil {
		p.logger.Warnw("metadata write failed", "error", err)
	}

	var subtitlePath string
	if p.config.Subtitles {
		subtitlePath = p.writeSubtitles(run, cues)
	}

	p.logger.Infow("video pipeline complete", "final", finalPath, "segments", segmentCount)

	return &Result{
		Run:          run,
		FinalPath:    finalPath,
		SubtitlePath: subtitlePath,
		Summary:      p.outputs.Summary(run.Number),
	}, nil
}

// reference art for each cast member and the shared background; any single
// failure is logged and skipped so assembly can proceed with what exists
func (p *Pipeline) generateReferences(ctx context.Context, run *outputs.Run) referenceSet {
	refs := referenceSet{characters: make(map[string]string)}

	for _, member := range p.config.Cast.Members {
		prompt := fmt.Sprintf("%s\n%s\nReference portrait", characterStyle, member.Description)
		path := filepath.Join(run.ReferenceDir(), fmt.Sprintf("character_%s.png", member.Key))
		if err := p.generateReference(ctx, prompt, path); err != nil {
			p.logger.Warnw("character reference failed",
				"character", member.Key, "error", err)
			continue
		}
		p.logger.Infow("generated character reference", "character", member.Key, "path", path)
		refs.characters[member.Key] = path
	}

	prompt := fmt.Sprintf("%s\n%s", backgroundStyle, p.config.Cast.Background)
	path := filepath.Join(run.ReferenceDir(), "background.png")
	if err := p.generateReference(ctx, prompt, path); err != nil {
		p.logger.Warnw("background reference failed", "error", err)
	} else {
		p.logger.Infow("generated background reference", "path", path)
		refs.background = path
	}

	return refs
}

func (p *Pipeline) generateReference(ctx context.Context, prompt, outputPath string) error {
	prompt = imagegen.AntiCache(prompt)

	if p.config.ImageMode == ImageModeStandard {
		req := imagegen.Request{
			Prompt:      prompt,
			Model:       p.config.ImageModel,
			AspectRatio: "16:9",
		}
		return p.services.Images.GenerateToFile(ctx, req, outputPath)
	}
	return p.services.Images.GenerateChatToFile(ctx, prompt, p.config.ImageModel, outputPath)
}

// segment dialogue to a WAV intermediate; empty path means the segment
// proceeds without audio
func (p *Pipeline) synthesizeSegment(
	ctx context.Context,
	run *outputs.Run,
	index int,
	visual, dialogue string,
) string {
	voice := p.config.Cast.VoiceFor(visual)
	p.logger.Infow("synthesizing segment audio", "segment", index, "voice", voice)

	pcm, err := p.services.Speech.Synthesize(ctx, dialogue, voice)
	if err != nil {
		p.logger.Warnw("segment synthesis failed, continuing without audio",
			"segment", index, "error", err)
		return ""
	}

	path := filepath.Join(run.IntermediateDir(), fmt.Sprintf("audio_%d.wav", index))
	if err := wav.WriteFile(path, wav.DefaultSpec(), pcm); err != nil {
		p.logger.Warnw("segment audio write failed, continuing without audio",
			"segment", index, "error", err)
		return ""
	}
	return path
}

// long-running generation for one segment, normalized to the clip profile
func (p *Pipeline) animateSegment(
	ctx context.Context,
	run *outputs.Run,
	index int,
	segment script.Segment,
	audioPath, clipPath string,
	duration time.Duration,
) error {
	prompt := strings.TrimSpace(segment.Visual)
	if prompt == "" {
		prompt = p.config.Cast.Background
	}
	if dialogue := strings.TrimSpace(segment.Dialogue); dialogue != "" {
		prompt = fmt.Sprintf("%s. The speaker says: %q", prompt, dialogue)
	}

	rawPath := filepath.Join(run.IntermediateDir(), fmt.Sprintf("animated_%d.mp4", index))
	if err := p.services.Video.GenerateClip(ctx, videogen.Request{Prompt: prompt}, rawPath); err != nil {
		return err
	}

	return p.services.Media.NormalizeClip(ctx, rawPath, audioPath, clipPath, duration)
}

// SRT sidecar timed by the cumulative clip durations
func (p *Pipeline) writeSubtitles(run *outputs.Run, cues []subtitle.Cue) string {
	if len(cues) == 0 {
		return ""
	}

	sub := subtitle.NewGenerator().FromCues(cues, "vi")
	writer, err := subtitle.NewWriter(subtitle.FormatSRT)
	if err != nil {
		p.logger.Warnw("subtitle writer unavailable", "error", err)
		return ""
	}

	path := filepath.Join(run.FinalDir(), fmt.Sprintf("run_%02d_final.srt", run.Number))
	if err := writer.Write(sub, path); err != nil {
		p.logger.Warnw("subtitle write failed", "error", err)
		return ""
	}

	p.outputs.AddStep(run, "Subtitles", path, outputs.TypeText)
	return path
}
