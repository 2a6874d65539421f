package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmngo/vidcast/internal/cast"
	"github.com/hmngo/vidcast/internal/media"
	"github.com/hmngo/vidcast/internal/outputs"
	"github.com/hmngo/vidcast/internal/script"
	"github.com/hmngo/vidcast/internal/tts"
	"github.com/hmngo/vidcast/internal/wav"
)

// RunPodcast executes the audio-only dialogue pipeline: parse the script,
// synthesize each line, stitch the waveform with fixed pauses and register
// the final file.
func (p *Pipeline) RunPodcast(ctx context.Context) (*Result, error) {
	if p.services.Speech == nil {
		return nil, fmt.Errorf("speech service is required")
	}

	if _, err := os.Stat(p.config.ScriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("script file not found: %s", p.config.ScriptPath)
	}
	data, err := os.ReadFile(p.config.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	lines := script.ParseDialogue(string(data))
	if len(lines) == 0 {
		return nil, fmt.Errorf("no dialogues found in %s", p.config.ScriptPath)
	}

	voices := cast.DefaultVoices()
	for speaker, voice := range p.config.Voices {
		voices[speaker] = voice
	}

	run, err := p.outputs.CreateRun(p.config.RunName)
	if err != nil {
		return nil, err
	}

	p.logger.Infow("starting podcast pipeline",
		"script", p.config.ScriptPath,
		"lines", len(lines),
		"run", run.Number,
	)

	var pcm []byte
	if p.config.MultiSpeaker {
		pcm, err = p.synthesizeConversation(ctx, lines, voices)
	} else {
		pcm, err = p.synthesizeLines(ctx, lines, voices)
	}
	if err != nil {
		return nil, err
	}

	spec := wav.DefaultSpec()
	wavPath := filepath.Join(run.IntermediateDir(), "podcast.wav")
	if err := wav.WriteFile(wavPath, spec, pcm); err != nil {
		return nil, fmt.Errorf("failed to write waveform: %w", err)
	}
	p.logger.Infow("assembled waveform",
		"path", wavPath,
		"samples", wav.Samples(spec, pcm),
	)

	deliveryPath := wavPath
	if p.config.MP3 {
		mp3Path := filepath.Join(run.IntermediateDir(), "podcast.mp3")
		opts := media.DefaultTranscodeOptions()
		if err := p.services.Media.TranscodeAudio(ctx, wavPath, mp3Path, opts); err != nil {
			return nil, fmt.Errorf("failed to transcode mp3: %w", err)
		}
		deliveryPath = mp3Path
	}

	finalPath, err := p.outputs.SaveFinal(run, deliveryPath, outputs.TypeAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to register final audio: %w", err)
	}
	if _, err := p.outputs.WriteMetadata(run, finalPath, outputs.TypeAudio); err != nil {
		p.logger.Warnw("metadata write failed", "error", err)
	}

	p.logger.Infow("podcast pipeline complete", "final", finalPath, "lines", len(lines))

	return &Result{
		Run:       run,
		FinalPath: finalPath,
		Summary:   p.outputs.Summary(run.Number),
	}, nil
}

// per-line synthesis stitched with a fixed lead-in and inter-line pauses.
// Unmapped speakers and failed lines are skipped.
func (p *Pipeline) synthesizeLines(
	ctx context.Context,
	lines []script.Line,
	voices cast.VoiceMap,
) ([]byte, error) {
	spec := wav.DefaultSpec()
	chunks := [][]byte{wav.Silence(spec, leadSilence)}
	synthesized := 0

	for i, line := range lines {
		voice, ok := voices.Lookup(line.Speaker)
		if !ok {
			p.logger.Warnw("no voice configured for speaker, skipping line",
				"speaker", line.Speaker)
			continue
		}

		text := strings.TrimSpace(script.StripStageDirection(line.Text))
		if text == "" {
			continue
		}

		p.logger.Infow("synthesizing line",
			"line", i+1,
			"total", len(lines),
			"speaker", line.Speaker,
		)
		pcm, err := p.services.Speech.Synthesize(ctx, text, voice)
		if err != nil {
			p.logger.Warnw("line synthesis failed, skipping",
				"speaker", line.Speaker, "error", err)
			continue
		}

		chunks = append(chunks, pcm, wav.Silence(spec, pauseSilence))
		synthesized++
	}

	if synthesized == 0 {
		return nil, fmt.Errorf("no lines could be synthesized")
	}

	return wav.ConcatPCM(chunks...), nil
}

// one synthesis call with the annotated transcript; the remote model handles
// turn-taking
func (p *Pipeline) synthesizeConversation(
	ctx context.Context,
	lines []script.Line,
	voices cast.VoiceMap,
) ([]byte, error) {
	var transcript strings.Builder
	speakers := make([]tts.SpeakerVoice, 0, len(voices))
	seen := make(map[string]bool)

	for _, line := range lines {
		voice, ok := voices.Lookup(line.Speaker)
		if !ok {
			p.logger.Warnw("no voice configured for speaker, skipping line",
				"speaker", line.Speaker)
			continue
		}

		text := strings.TrimSpace(script.StripStageDirection(line.Text))
		if text == "" {
			continue
		}

		fmt.Fprintf(&transcript, "%s: %s\n", line.Speaker, text)
		if !seen[line.Speaker] {
			seen[line.Speaker] = true
			speakers = append(speakers, tts.SpeakerVoice{
				Speaker: line.Speaker,
				Voice:   voice,
			})
		}
	}

	if len(speakers) == 0 {
		return nil, fmt.Errorf("no lines could be synthesized")
	}

	pcm, err := p.services.Speech.SynthesizeMultiSpeaker(ctx, transcript.String(), speakers)
	if err != nil {
		return nil, fmt.Errorf("multi-speaker synthesis failed: %w", err)
	}
	return pcm, nil
}
