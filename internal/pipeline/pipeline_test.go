package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hmngo/vidcast/internal/imagegen"
	"github.com/hmngo/vidcast/internal/media"
	"github.com/hmngo/vidcast/internal/tts"
	"github.com/hmngo/vidcast/internal/videogen"
	"github.com/hmngo/vidcast/internal/wav"
)

func TestMain(m *testing.M) {
	// metadata probes must not resolve real ffmpeg binaries
	if path, err := exec.LookPath("true"); err == nil {
		os.Setenv("VIDCAST_FFMPEG_PATH", path)
		os.Setenv("VIDCAST_FFPROBE_PATH", path)
	}
	os.Exit(m.Run())
}

type fakeSpeech struct {
	pcm   []byte
	err   error
	calls []string

	multiCalls int
	multiText  string
	speakers   []tts.SpeakerVoice
}

func (f *fakeSpeech) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.pcm, nil
}

func (f *fakeSpeech) SynthesizeMultiSpeaker(
	_ context.Context,
	text string,
	speakers []tts.SpeakerVoice,
) ([]byte, error) {
	f.multiCalls++
	f.multiText = text
	f.speakers = speakers
	if f.err != nil {
		return nil, f.err
	}
	return f.pcm, nil
}

type fakeImages struct {
	err      error
	chat     int
	standard int
}

func (f *fakeImages) GenerateToFile(
	_ context.Context,
	_ imagegen.Request,
	outputPath string,
) error {
	f.standard++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("png"), 0644)
}

func (f *fakeImages) GenerateChatToFile(
	_ context.Context,
	_, _ string,
	outputPath string,
) error {
	f.chat++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("png"), 0644)
}

type fakeVideo struct {
	err   error
	calls []string
}

func (f *fakeVideo) GenerateClip(
	_ context.Context,
	req videogen.Request,
	outputPath string,
) error {
	f.calls = append(f.calls, req.Prompt)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("mp4"), 0644)
}

type clipCall struct {
	imagePath string
	audioPath string
	duration  time.Duration
}

type fakeAssembler struct {
	audioDuration  time.Duration
	failAudioProbe bool

	clipCalls    []clipCall
	normalized   []string
	concatenated []string
	overlaid     bool
	finalized    bool
	transcoded   bool
}

func (f *fakeAssembler) ClipFromImage(
	_ context.Context,
	imagePath, audioPath, outputPath string,
	duration time.Duration,
) error {
	f.clipCalls = append(f.clipCalls, clipCall{imagePath, audioPath, duration})
	return os.WriteFile(outputPath, []byte("clip"), 0644)
}

func (f *fakeAssembler) NormalizeClip(
	_ context.Context,
	_, _, outputPath string,
	_ time.Duration,
) error {
	f.normalized = append(f.normalized, outputPath)
	return os.WriteFile(outputPath, []byte("normalized"), 0644)
}

func (f *fakeAssembler) Concat(
	_ context.Context,
	clipPaths []string,
	outputPath string,
) error {
	f.concatenated = clipPaths
	return os.WriteFile(outputPath, []byte("combined"), 0644)
}

func (f *fakeAssembler) OverlayGIF(_ context.Context, _, _, outputPath string) error {
	f.overlaid = true
	return os.WriteFile(outputPath, []byte("decorated"), 0644)
}

func (f *fakeAssembler) Finalize(_ context.Context, _, outputPath string) error {
	f.finalized = true
	return os.WriteFile(outputPath, []byte("final"), 0644)
}

func (f *fakeAssembler) Duration(filePath string) (time.Duration, error) {
	if strings.Contains(filepath.Base(filePath), "audio_") {
		if f.failAudioProbe {
			return 0, fmt.Errorf("probe failed")
		}
		if f.audioDuration > 0 {
			return f.audioDuration, nil
		}
	}
	return 3 * time.Second, nil
}

func (f *fakeAssembler) TranscodeAudio(
	_ context.Context,
	_, outputPath string,
	_ media.TranscodeOptions,
) error {
	f.transcoded = true
	return os.WriteFile(outputPath, []byte("mp3"), 0644)
}

const twoSegmentScript = `[Segment 1]
Visual: chuyen_gia talking in the studio
Dialogue: Xin chào quý vị, hôm nay chúng ta nói về trí tuệ nhân tạo.

[Segment 2]
Visual: nguoi_cao_tuoi listening carefully
Dialogue: Vâng, tôi rất quan tâm đến chủ đề này.
`

const dialogueScript = `*   **Lời thoại (Chuyên gia Lan):** (cười) Chào mừng đến với chương trình.
*   **Lời thoại (bà Nhung):** Cảm ơn cô đã mời tôi.
`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, config Config, services Services) *Pipeline {
	t.Helper()
	if config.OutputDir == "" {
		config.OutputDir = t.TempDir()
	}
	p, err := New(config, services)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}, Services{}); err == nil {
		t.Error("expected error for missing script path")
	}

	_, err := New(
		Config{ScriptPath: "script.txt", OutputDir: t.TempDir(), ImageMode: "sketch"},
		Services{},
	)
	if err == nil || !strings.Contains(err.Error(), "unsupported image mode") {
		t.Errorf("error = %v, want unsupported image mode", err)
	}
}

func TestRunHaltsBeforeNetworkOnEmptyScript(t *testing.T) {
	speech := &fakeSpeech{pcm: make([]byte, 4800)}
	images := &fakeImages{}
	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, "just prose, no segment blocks"),
		Duration:   16,
	}, Services{Speech: speech, Images: images, Media: &fakeAssembler{}})

	_, err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no segments found") {
		t.Fatalf("error = %v, want no segments found", err)
	}

	if len(speech.calls) != 0 || images.chat != 0 || images.standard != 0 {
		t.Error("expected no service calls for an empty script")
	}
}

func TestRunMissingScript(t *testing.T) {
	p := newTestPipeline(t, Config{
		ScriptPath: filepath.Join(t.TempDir(), "missing.txt"),
	}, Services{Speech: &fakeSpeech{}, Images: &fakeImages{}, Media: &fakeAssembler{}})

	_, err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "script file not found") {
		t.Fatalf("error = %v, want script file not found", err)
	}
}

func TestRunMissingOverlay(t *testing.T) {
	images := &fakeImages{}
	p := newTestPipeline(t, Config{
		ScriptPath:  writeScript(t, twoSegmentScript),
		OverlayPath: filepath.Join(t.TempDir(), "missing.gif"),
	}, Services{Speech: &fakeSpeech{}, Images: images, Media: &fakeAssembler{}})

	_, err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "overlay file not found") {
		t.Fatalf("error = %v, want overlay file not found", err)
	}
	if images.chat != 0 {
		t.Error("expected no image calls before preflight passes")
	}
}

func TestRunTwoSegmentScript(t *testing.T) {
	speech := &fakeSpeech{pcm: make([]byte, 9600)}
	images := &fakeImages{}
	assembler := &fakeAssembler{audioDuration: 5 * time.Second}
	outputDir := t.TempDir()

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, twoSegmentScript),
		OutputDir:  outputDir,
		RunName:    "video podcast",
		Duration:   16,
	}, Services{Speech: speech, Images: images, Media: assembler})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// two cast portraits plus the background
	if images.chat != 3 {
		t.Errorf("chat image calls = %d, want 3", images.chat)
	}
	if len(speech.calls) != 2 {
		t.Errorf("synthesis calls = %d, want 2", len(speech.calls))
	}

	for i := 1; i <= 2; i++ {
		audio := filepath.Join(result.Run.IntermediateDir(), fmt.Sprintf("audio_%d.wav", i))
		if _, err := os.Stat(audio); err != nil {
			t.Errorf("expected audio intermediate %d: %v", i, err)
		}
		clip := filepath.Join(result.Run.IntermediateDir(), fmt.Sprintf("video_%d.mp4", i))
		if _, err := os.Stat(clip); err != nil {
			t.Errorf("expected clip intermediate %d: %v", i, err)
		}
	}

	if len(assembler.clipCalls) != 2 {
		t.Fatalf("clip calls = %d, want 2", len(assembler.clipCalls))
	}
	for i, call := range assembler.clipCalls {
		if call.audioPath == "" {
			t.Errorf("clip %d: expected audio track", i+1)
		}
		if call.duration != 5*time.Second {
			t.Errorf("clip %d duration = %v, want 5s", i+1, call.duration)
		}
	}
	if got := filepath.Base(assembler.clipCalls[0].imagePath); got != "character_chuyen_gia.png" {
		t.Errorf("segment 1 image = %q, want character_chuyen_gia.png", got)
	}
	if got := filepath.Base(assembler.clipCalls[1].imagePath); got != "character_nguoi_cao_tuoi.png" {
		t.Errorf("segment 2 image = %q, want character_nguoi_cao_tuoi.png", got)
	}

	if len(assembler.concatenated) != 2 {
		t.Errorf("concatenated clips = %d, want 2", len(assembler.concatenated))
	}
	if !assembler.finalized {
		t.Error("expected finalize pass without an overlay")
	}
	if assembler.overlaid {
		t.Error("overlay must not run without a gif")
	}

	if got := filepath.Base(result.FinalPath); got != "run_01_final.mp4" {
		t.Errorf("final = %q, want run_01_final.mp4", got)
	}
	if _, err := os.Stat(result.FinalPath); err != nil {
		t.Errorf("expected final file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, "final", "run_01_final.mp4")); err != nil {
		t.Errorf("expected shared final copy: %v", err)
	}
	metadata := filepath.Join(result.Run.FinalDir(), "metadata.json")
	if _, err := os.Stat(metadata); err != nil {
		t.Errorf("expected metadata sidecar: %v", err)
	}
	if len(result.Run.Steps) == 0 {
		t.Error("expected registered steps")
	}
	if !strings.Contains(result.Summary, "OUTPUT SUMMARY") {
		t.Error("expected summary banner in result")
	}
}

func TestRunOverlayStage(t *testing.T) {
	gifPath := filepath.Join(t.TempDir(), "mascot.gif")
	if err := os.WriteFile(gifPath, []byte("gif"), 0644); err != nil {
		t.Fatal(err)
	}

	assembler := &fakeAssembler{}
	p := newTestPipeline(t, Config{
		ScriptPath:  writeScript(t, twoSegmentScript),
		Duration:    8,
		OverlayPath: gifPath,
	}, Services{
		Speech: &fakeSpeech{pcm: make([]byte, 4800)},
		Images: &fakeImages{},
		Media:  assembler,
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !assembler.overlaid {
		t.Error("expected overlay stage to run")
	}
	if assembler.finalized {
		t.Error("finalize must not run when the overlay produced the delivery file")
	}
}

func TestRunSilentSegmentUsesDefaultDuration(t *testing.T) {
	script := `[Segment 1]
Visual: chuyen_gia at the desk
Dialogue: Chào mừng quý vị.
`
	speech := &fakeSpeech{pcm: make([]byte, 4800)}
	assembler := &fakeAssembler{}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, script),
		Duration:   16, // segment 2 has no script block
	}, Services{Speech: speech, Images: &fakeImages{}, Media: assembler})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(speech.calls) != 1 {
		t.Fatalf("synthesis calls = %d, want 1", len(speech.calls))
	}
	if len(assembler.clipCalls) != 2 {
		t.Fatalf("clip calls = %d, want 2", len(assembler.clipCalls))
	}

	silent := assembler.clipCalls[1]
	if silent.audioPath != "" {
		t.Error("segment without dialogue must not carry audio")
	}
	if silent.duration != 8*time.Second {
		t.Errorf("silent clip duration = %v, want 8s", silent.duration)
	}
	if got := filepath.Base(silent.imagePath); got != "background.png" {
		t.Errorf("silent clip image = %q, want background.png", got)
	}
}

func TestRunAudioProbeFailureFallsBackToSilentClip(t *testing.T) {
	speech := &fakeSpeech{pcm: make([]byte, 4800)}
	assembler := &fakeAssembler{failAudioProbe: true}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, twoSegmentScript),
		Duration:   8,
	}, Services{Speech: speech, Images: &fakeImages{}, Media: assembler})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(assembler.clipCalls) != 1 {
		t.Fatalf("clip calls = %d, want 1", len(assembler.clipCalls))
	}
	call := assembler.clipCalls[0]
	if call.audioPath != "" {
		t.Error("expected clip without audio after probe failure")
	}
	if call.duration != 8*time.Second {
		t.Errorf("clip duration = %v, want the 8s default", call.duration)
	}
}

func TestRunAnimateFallsBackOnTimeout(t *testing.T) {
	video := &fakeVideo{err: videogen.ErrPollTimeout}
	assembler := &fakeAssembler{}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, twoSegmentScript),
		Duration:   16,
		Animate:    true,
	}, Services{
		Speech: &fakeSpeech{pcm: make([]byte, 4800)},
		Images: &fakeImages{},
		Video:  video,
		Media:  assembler,
	})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(video.calls) != 2 {
		t.Errorf("video generation attempts = %d, want 2", len(video.calls))
	}
	if len(assembler.clipCalls) != 2 {
		t.Errorf("still-image fallbacks = %d, want 2", len(assembler.clipCalls))
	}
	if len(assembler.normalized) != 0 {
		t.Error("no clip should be normalized when generation times out")
	}
	if _, err := os.Stat(result.FinalPath); err != nil {
		t.Errorf("expected final file despite fallbacks: %v", err)
	}
}

func TestRunAnimateUsesGeneratedClips(t *testing.T) {
	video := &fakeVideo{}
	assembler := &fakeAssembler{}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, twoSegmentScript),
		Duration:   16,
		Animate:    true,
	}, Services{
		Speech: &fakeSpeech{pcm: make([]byte, 4800)},
		Images: &fakeImages{},
		Video:  video,
		Media:  assembler,
	})

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(assembler.normalized) != 2 {
		t.Errorf("normalized clips = %d, want 2", len(assembler.normalized))
	}
	if len(assembler.clipCalls) != 0 {
		t.Error("still-image path must not run when generation succeeds")
	}
	if !strings.Contains(video.calls[0], "chuyen_gia talking in the studio") {
		t.Errorf("prompt = %q, want the segment visual", video.calls[0])
	}
}

func TestRunWritesSubtitles(t *testing.T) {
	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, twoSegmentScript),
		Duration:   16,
		Subtitles:  true,
	}, Services{
		Speech: &fakeSpeech{pcm: make([]byte, 4800)},
		Images: &fakeImages{},
		Media:  &fakeAssembler{},
	})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if filepath.Base(result.SubtitlePath) != "run_01_final.srt" {
		t.Fatalf("subtitle path = %q, want run_01_final.srt", result.SubtitlePath)
	}
	data, err := os.ReadFile(result.SubtitlePath)
	if err != nil {
		t.Fatalf("failed to read subtitles: %v", err)
	}
	content := string(data)

	// clips probe at 3s each, so cues run back to back
	if !strings.Contains(content, "00:00:00,000 --> 00:00:03,000") {
		t.Errorf("subtitles missing first cue timing:\n%s", content)
	}
	if !strings.Contains(content, "00:00:03,000 --> 00:00:06,000") {
		t.Errorf("subtitles missing second cue timing:\n%s", content)
	}
	if !strings.Contains(content, "trí tuệ nhân tạo") {
		t.Errorf("subtitles missing dialogue text:\n%s", content)
	}
}

func TestRunPodcastNoDialogues(t *testing.T) {
	speech := &fakeSpeech{}
	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, "plain text without any dialogue bullets"),
	}, Services{Speech: speech, Media: &fakeAssembler{}})

	_, err := p.RunPodcast(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no dialogues found") {
		t.Fatalf("error = %v, want no dialogues found", err)
	}
	if len(speech.calls) != 0 {
		t.Error("expected no synthesis calls for an empty script")
	}
}

func TestRunPodcastSkipsUnmappedSpeaker(t *testing.T) {
	script := dialogueScript +
		"*   **Lời thoại (Người lạ):** Tôi không có giọng.\n"
	speech := &fakeSpeech{pcm: make([]byte, 4800)}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, script),
	}, Services{Speech: speech, Media: &fakeAssembler{}})

	if _, err := p.RunPodcast(context.Background()); err != nil {
		t.Fatalf("RunPodcast() error = %v", err)
	}

	if len(speech.calls) != 2 {
		t.Fatalf("synthesis calls = %d, want 2", len(speech.calls))
	}
	for _, call := range speech.calls {
		if strings.Contains(call, "không có giọng") {
			t.Error("unmapped speaker must not be synthesized")
		}
	}
	if speech.calls[0] != "Chào mừng đến với chương trình." {
		t.Errorf("first line = %q, want stage direction stripped", speech.calls[0])
	}
}

func TestRunPodcastVoiceOverrides(t *testing.T) {
	script := "*   **Lời thoại (Người lạ):** Giờ tôi có giọng rồi.\n"
	speech := &fakeSpeech{pcm: make([]byte, 4800)}

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, script),
		Voices:     map[string]string{"Người lạ": "puck"},
	}, Services{Speech: speech, Media: &fakeAssembler{}})

	if _, err := p.RunPodcast(context.Background()); err != nil {
		t.Fatalf("RunPodcast() error = %v", err)
	}
	if len(speech.calls) != 1 {
		t.Errorf("synthesis calls = %d, want 1", len(speech.calls))
	}
}

func TestRunPodcastSampleCount(t *testing.T) {
	speech := &fakeSpeech{pcm: make([]byte, 9600)} // 4800 samples per line

	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, dialogueScript),
	}, Services{Speech: speech, Media: &fakeAssembler{}})

	result, err := p.RunPodcast(context.Background())
	if err != nil {
		t.Fatalf("RunPodcast() error = %v", err)
	}

	if got := filepath.Base(result.FinalPath); got != "run_01_final.wav" {
		t.Fatalf("final = %q, want run_01_final.wav", got)
	}

	info, err := wav.ReadInfo(result.FinalPath)
	if err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}

	// 0.5s lead + 2 * (line + 0.75s pause) at 24kHz
	want := 12000 + 2*(4800+18000)
	if info.Samples != want {
		t.Errorf("samples = %d, want %d", info.Samples, want)
	}
	if info.Spec.SampleRate != 24000 || info.Spec.Channels != 1 {
		t.Errorf("spec = %+v, want 24kHz mono", info.Spec)
	}
}

func TestRunPodcastMultiSpeaker(t *testing.T) {
	speech := &fakeSpeech{pcm: make([]byte, 9600)}

	p := newTestPipeline(t, Config{
		ScriptPath:   writeScript(t, dialogueScript),
		MultiSpeaker: true,
	}, Services{Speech: speech, Media: &fakeAssembler{}})

	if _, err := p.RunPodcast(context.Background()); err != nil {
		t.Fatalf("RunPodcast() error = %v", err)
	}

	if speech.multiCalls != 1 {
		t.Fatalf("multi-speaker calls = %d, want 1", speech.multiCalls)
	}
	if len(speech.calls) != 0 {
		t.Error("per-line synthesis must not run in multi-speaker mode")
	}
	if !strings.Contains(speech.multiText, "Chuyên gia Lan: Chào mừng") {
		t.Errorf("transcript = %q, want annotated rows", speech.multiText)
	}
	if len(speech.speakers) != 2 {
		t.Fatalf("speakers = %d, want 2", len(speech.speakers))
	}
	if speech.speakers[0].Voice != "achernar" || speech.speakers[1].Voice != "gacrux" {
		t.Errorf("voices = %s, %s, want achernar, gacrux",
			speech.speakers[0].Voice, speech.speakers[1].Voice)
	}
}

func TestRunPodcastMP3(t *testing.T) {
	assembler := &fakeAssembler{}
	p := newTestPipeline(t, Config{
		ScriptPath: writeScript(t, dialogueScript),
		MP3:        true,
	}, Services{Speech: &fakeSpeech{pcm: make([]byte, 4800)}, Media: assembler})

	result, err := p.RunPodcast(context.Background())
	if err != nil {
		t.Fatalf("RunPodcast() error = %v", err)
	}

	if !assembler.transcoded {
		t.Error("expected mp3 transcode")
	}
	if got := filepath.Base(result.FinalPath); got != "run_01_final.mp3" {
		t.Errorf("final = %q, want run_01_final.mp3", got)
	}
}
