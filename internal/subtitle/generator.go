package subtitle

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Generator converts timed dialogue cues into display-ready entries
type Generator struct {
	MaxCharsPerLine int
	MaxLinesPerSub  int
	MaxDuration     time.Duration
}

func NewGenerator() *Generator {
	return &Generator{
		MaxCharsPerLine: 42, // Standard subtitle line length
		MaxLinesPerSub:  2,  // Most players support 2 lines
		MaxDuration:     7 * time.Second,
	}
}

// builds a subtitle track from cues, splitting passages that run too long
// and wrapping long lines
func (g *Generator) FromCues(cues []Cue, language string) *Subtitle {
	sub := &Subtitle{
		Entries:  []Entry{},
		Language: language,
		Format:   string(FormatSRT),
	}

	index := 1
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}

		maxChars := g.MaxCharsPerLine * g.MaxLinesPerSub
		tooLong := utf8.RuneCountInString(text) > maxChars ||
			cue.EndTime-cue.StartTime > g.MaxDuration

		if !tooLong {
			sub.Entries = append(sub.Entries, Entry{
				Index:     index,
				StartTime: cue.StartTime,
				EndTime:   cue.EndTime,
				Text:      g.wrap(text),
			})
			index++
			continue
		}

		for _, entry := range g.splitCue(cue, index) {
			sub.Entries = append(sub.Entries, entry)
			index++
		}
	}

	return sub
}

// splits a long cue into evenly timed entries on word boundaries
func (g *Generator) splitCue(cue Cue, startIndex int) []Entry {
	words := strings.Fields(strings.TrimSpace(cue.Text))
	if len(words) == 0 {
		return nil
	}

	total := cue.EndTime - cue.StartTime
	maxChars := g.MaxCharsPerLine * g.MaxLinesPerSub
	totalChars := utf8.RuneCountInString(cue.Text)

	parts := (totalChars + maxChars - 1) / maxChars
	if parts < 1 {
		parts = 1
	}
	if byDuration := int(total/g.MaxDuration) + 1; byDuration > parts {
		parts = byDuration
	}

	wordsPerPart := (len(words) + parts - 1) / parts
	durationPerPart := total / time.Duration(parts)

	var entries []Entry
	start := cue.StartTime

	for i := 0; i < parts && len(words) > 0; i++ {
		take := wordsPerPart
		if take > len(words) {
			take = len(words)
		}
		part := words[:take]
		words = words[take:]

		end := start + durationPerPart
		if len(words) == 0 {
			end = cue.EndTime
		}

		entries = append(entries, Entry{
			Index:     startIndex + i,
			StartTime: start,
			EndTime:   end,
			Text:      g.wrap(strings.Join(part, " ")),
		})

		start = end
	}

	return entries
}

// wraps text onto two lines at the word break closest to the middle
func (g *Generator) wrap(text string) string {
	text = strings.TrimSpace(text)
	runeCount := utf8.RuneCountInString(text)
	if runeCount <= g.MaxCharsPerLine {
		return text
	}

	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}

	middle := runeCount / 2
	bestSplit := 0
	bestDiff := runeCount

	currentLen := 0
	for i, word := range words[:len(words)-1] {
		currentLen += utf8.RuneCountInString(word)
		if i > 0 {
			currentLen++ // space
		}

		diff := currentLen - middle
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			bestSplit = i + 1
		}
	}

	if bestSplit > 0 && bestSplit < len(words) {
		line1 := strings.Join(words[:bestSplit], " ")
		line2 := strings.Join(words[bestSplit:], " ")
		return line1 + "\n" + line2
	}

	return text
}
