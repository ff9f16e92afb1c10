// Package subtitle generates ASS subtitle files for the Mixer's optional
// burn-in path.
package subtitle

import (
	"fmt"
	"strings"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
)

const baseFontSize = 60
const baseMargin = 30
const baseWidth = 1280
const minEventDurationMs = 100
const minGapMs = 40

// Cue is one rendered caption, with timing relative to the batch's local
// output window (seconds).
type Cue struct {
	StartSec float64
	EndSec   float64
	Text     string
}

// BuildCues derives one or more cues per sentence by splitting its original
// text according to language-aware max-chars rules and distributing the
// sentence's adjusted duration proportionally to character count.
func BuildCues(sentences []domain.Sentence, batchStartMs int64, lang string) []Cue {
	var cues []Cue
	lastEnd := 0.0

	for _, s := range sentences {
		if s.Timestamp == nil {
			continue
		}
		startSec := float64(s.Timestamp.AdjustedStartMs-batchStartMs) / 1000
		durSec := float64(s.Timestamp.AdjustedDurationMs) / 1000

		parts := splitText(s.OriginalText, maxChars(lang))
		if len(parts) == 0 {
			continue
		}

		totalChars := 0
		for _, p := range parts {
			totalChars += len([]rune(p))
		}
		if totalChars == 0 {
			continue
		}

		cursor := startSec
		for _, p := range parts {
			share := float64(len([]rune(p))) / float64(totalChars)
			dur := durSec * share
			if dur*1000 < minEventDurationMs {
				dur = minEventDurationMs / 1000.0
			}
			cueStart := cursor
			if cueStart < lastEnd+minGapMs/1000.0 {
				cueStart = lastEnd + minGapMs/1000.0
			}
			cueEnd := cueStart + dur
			cues = append(cues, Cue{StartSec: cueStart, EndSec: cueEnd, Text: p})
			cursor = cueEnd
			lastEnd = cueEnd
		}
	}
	return cues
}

func maxChars(lang string) int {
	switch lang {
	case "zh", "ja", "ko":
		return 20
	default:
		return 40
	}
}

func splitText(text string, max int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	var parts []string
	for len(runes) > max {
		cut := max
		// prefer breaking at the nearest preceding space
		for i := max; i > 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, strings.TrimSpace(string(runes)))
	}
	return parts
}

// Render writes an ASS file sized to videoWidth/videoHeight, with the
// default style: Arial bold white fill, semi-opaque black outline (border
// style 3), bottom-center, font scaled by videoWidth/1280.
func Render(cues []Cue, videoWidth, videoHeight int) string {
	scale := float64(videoWidth) / baseWidth
	fontSize := int(baseFontSize * scale)
	margin := int(baseMargin * scale)

	var b strings.Builder
	fmt.Fprintf(&b, "[Script Info]\nPlayResX: %d\nPlayResY: %d\nScriptType: v4.00+\n\n", videoWidth, videoHeight)
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, OutlineColour, Bold, BorderStyle, Outline, Alignment, MarginL, MarginR, MarginV\n")
	fmt.Fprintf(&b, "Style: Default,Arial,%d,&H00FFFFFF,&H80000000,-1,3,1,2,%d,%d,%d\n\n", fontSize, margin, margin, margin)
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Text\n")
	for _, c := range cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,%s\n", formatTime(c.StartSec), formatTime(c.EndSec), escapeText(c.Text))
	}
	return b.String()
}

func formatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	h := int(sec) / 3600
	m := (int(sec) % 3600) / 60
	s := int(sec) % 60
	cs := int((sec - float64(int(sec))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

func escapeText(s string) string {
	return strings.ReplaceAll(s, "\n", "\\N")
}
