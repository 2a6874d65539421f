package script

import (
	"regexp"
	"strconv"
	"strings"
)

// one visual/dialogue block of a segment-format script
type Segment struct {
	Visual   string
	Dialogue string
}

// one speaker line of a dialogue-format script
type Line struct {
	Speaker string
	Text    string
}

var (
	segmentHeader  = regexp.MustCompile(`\[Segment (\d+)[^\]]*\]`)
	segmentBody    = regexp.MustCompile(`(?s)\A\s*Visual:\s*(.*?)\s*Dialogue:\s*(.*)\z`)
	dialogueBullet = regexp.MustCompile(`(?m)^\*\s+\*\*Lời thoại \(([^)]+)\):\*\*\s*(.*)$`)
	stageDirection = regexp.MustCompile(`^\([^)]*\)\s*`)
)

// ParseSegments extracts "[Segment N]" blocks keyed by their numbers.
// A block must carry a Visual: label followed by a Dialogue: label; blocks
// missing either are omitted, so callers indexing the map read empty strings
// for them. Numbers need not be contiguous; a duplicate number keeps the
// last block.
func ParseSegments(text string) map[int]Segment {
	headers := segmentHeader.FindAllStringSubmatchIndex(text, -1)
	segments := make(map[int]Segment, len(headers))

	for i, loc := range headers {
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}

		number, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}

		body := segmentBody.FindStringSubmatch(text[loc[1]:end])
		if body == nil {
			continue
		}

		segments[number] = Segment{
			Visual:   strings.TrimSpace(body[1]),
			Dialogue: strings.TrimSpace(body[2]),
		}
	}

	return segments
}

// ParseDialogue extracts markdown-bullet speaker lines of the form
// "*   **Lời thoại (Speaker):** text" in document order. Any speaker name
// is captured; voice mapping is the caller's concern.
func ParseDialogue(text string) []Line {
	matches := dialogueBullet.FindAllStringSubmatch(text, -1)
	lines := make([]Line, 0, len(matches))

	for _, m := range matches {
		lines = append(lines, Line{
			Speaker: strings.TrimSpace(m[1]),
			Text:    strings.TrimSpace(m[2]),
		})
	}

	return lines
}

// StripStageDirection removes one leading parenthetical such as
// "(đoạn mở đầu) " from a dialogue line.
func StripStageDirection(s string) string {
	return stageDirection.ReplaceAllString(s, "")
}
