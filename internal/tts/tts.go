package tts

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hmngo/vidcast/internal/gateway"
	"github.com/hmngo/vidcast/internal/wav"
)

const (
	DefaultModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice = "Kore"
)

// one speaker's voice assignment for multi-speaker synthesis
type SpeakerVoice struct {
	Speaker string
	Voice   string
}

// speech synthesis over the gateway's Gemini-convention TTS endpoint.
// Responses carry base64 PCM at 24 kHz mono 16-bit.
type Client struct {
	gw    *gateway.Client
	model string
}

func NewClient(gw *gateway.Client, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{gw: gw, model: model}
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig             *voiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type response struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData struct {
					Data string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize converts text to raw PCM using a prebuilt voice.
func (c *Client) Synthesize(
	ctx context.Context,
	text, voice string,
) ([]byte, error) {
	if voice == "" {
		voice = DefaultVoice
	}

	req := request{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: &voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	}

	return c.generate(ctx, req)
}

// SynthesizeMultiSpeaker converts an annotated transcript ("Speaker: line"
// rows) in one call, letting the remote model handle turn-taking.
func (c *Client) SynthesizeMultiSpeaker(
	ctx context.Context,
	text string,
	speakers []SpeakerVoice,
) ([]byte, error) {
	if len(speakers) == 0 {
		return nil, fmt.Errorf("at least one speaker voice is required")
	}

	configs := make([]speakerVoiceConfig, 0, len(speakers))
	for _, s := range speakers {
		configs = append(configs, speakerVoiceConfig{
			Speaker: s.Speaker,
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: s.Voice},
			},
		})
	}

	req := request{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				MultiSpeakerVoiceConfig: &multiSpeakerVoiceConfig{
					SpeakerVoiceConfigs: configs,
				},
			},
		},
	}

	return c.generate(ctx, req)
}

// SynthesizeToFile synthesizes text and persists it as a WAV file.
func (c *Client) SynthesizeToFile(
	ctx context.Context,
	text, voice, path string,
) error {
	pcm, err := c.Synthesize(ctx, text, voice)
	if err != nil {
		return err
	}
	return wav.WriteFile(path, wav.DefaultSpec(), pcm)
}

func (c *Client) generate(ctx context.Context, req request) ([]byte, error) {
	path := fmt.Sprintf("/gemini/v1beta/models/%s:generateContent", c.model)

	var resp response
	if err := c.gw.PostJSON(ctx, path, gateway.AuthGoogle, req, &resp); err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, gateway.MissingField("candidates")
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return nil, gateway.MissingField("candidates[0].content.parts")
	}
	data := parts[0].InlineData.Data
	if data == "" {
		return nil, gateway.MissingField("parts[0].inlineData.data")
	}

	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: inlineData is not valid base64: %v",
			gateway.ErrMalformedResponse, err)
	}
	return pcm, nil
}
