package cast

import "strings"

// one on-screen participant: a key matched against visual descriptions,
// the voice used for their lines, and a reference-portrait prompt
type Member struct {
	Key         string
	Voice       string
	Description string
}

// maps segment visuals to voices and reference art.
// Members are scanned in order; the first whose key appears in the visual
// description wins. No match falls back to DefaultVoice for audio and the
// background reference for video frames.
type Cast struct {
	Members      []Member
	DefaultVoice string
	Background   string
}

// the built-in two-host Vietnamese podcast setup
func Default() *Cast {
	return &Cast{
		Members: []Member{
			{
				Key:         "nguoi_cao_tuoi",
				Voice:       "Vietnamese-Male-Old",
				Description: "Vietnamese old person, portrait",
			},
			{
				Key:         "chuyen_gia",
				Voice:       "Vietnamese-Male-Young",
				Description: "Vietnamese consultant, portrait",
			},
		},
		DefaultVoice: "Vietnamese-Male-Young",
		Background:   "Vietnamese studio podcast background",
	}
}

// voice for a segment's visual description
func (c *Cast) VoiceFor(visual string) string {
	for _, m := range c.Members {
		if strings.Contains(visual, m.Key) {
			return m.Voice
		}
	}
	return c.DefaultVoice
}

// member whose reference image backs the segment; false means the
// background reference should be used
func (c *Cast) MemberFor(visual string) (Member, bool) {
	for _, m := range c.Members {
		if strings.Contains(visual, m.Key) {
			return m, true
		}
	}
	return Member{}, false
}

// speaker-name to voice mapping for dialogue-format scripts
type VoiceMap map[string]string

// the built-in dialogue voices
func DefaultVoices() VoiceMap {
	return VoiceMap{
		"Chuyên gia Lan": "achernar",
		"bà Nhung":       "gacrux",
	}
}

// voice for a speaker; false when the speaker has no mapping
func (m VoiceMap) Lookup(speaker string) (string, bool) {
	voice, ok := m[speaker]
	return voice, ok
}
