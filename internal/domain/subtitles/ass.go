package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/clipnetic/clipnetic/internal/types"
)

// Style is the subtitle look for vertical output.
type Style struct {
	PlayResX int
	PlayResY int
	Font     string
	FontSize int
	MarginV  int
}

func DefaultStyle() Style {
	return Style{PlayResX: 1080, PlayResY: 1920, Font: "Anton", FontSize: 96, MarginV: 420}
}

// RenderVerticalASS builds karaoke subtitles for the words that start inside
// [iv.Start, iv.End). Event times are clip-local.
func RenderVerticalASS(words []types.WordSegment, iv types.ClipInterval, st Style) string {
	ws := collectWords(words, dur(iv.Start), dur(iv.End))
	var b strings.Builder
	b.WriteString(assHeader(st))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	if len(ws) == 0 {
		return b.String()
	}
	for _, ln := range packWords(ws) {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(ln.Start))
		b.WriteString(",")
		b.WriteString(assTime(ln.End))
		b.WriteString(",Vertical,,0,0,0,,")
		for i, w := range ln.Words {
			cs := int((w.End - w.Start) / (10 * time.Millisecond))
			if cs < 1 {
				cs = 1
			}
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "{\\k%d}%s", cs, w.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Text joins the words of one interval, for manifests and scoring.
func Text(words []types.WordSegment, iv types.ClipInterval) string {
	var parts []string
	for _, w := range words {
		if w.Start < iv.Start || w.Start >= iv.End {
			continue
		}
		if t := strings.TrimSpace(w.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

type wword struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Words []wword
}

func collectWords(words []types.WordSegment, start, end time.Duration) []wword {
	var out []wword
	for _, w := range words {
		ws, we := dur(w.Start), dur(w.End)
		if ws < start || ws >= end {
			continue
		}
		text := sanitizeASS(w.Text)
		if text == "" {
			continue
		}
		if we > end {
			we = end
		}
		out = append(out, wword{Start: ws - start, End: we - start, Text: text})
	}
	return out
}

// packWords splits words into lines of at most 4 words and 24 runes, which
// is what fits across a 1080px wide frame at the default size.
func packWords(words []wword) []line {
	const (
		charBudget = 24
		wordBudget = 4
	)
	var out []line
	cur := line{Start: words[0].Start}
	curLen := 0
	for _, w := range words {
		wl := len([]rune(w.Text))
		next := curLen + wl
		if curLen > 0 {
			next++
		}
		if len(cur.Words) > 0 && (len(cur.Words) >= wordBudget || next > charBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen = 0
			next = wl
		}
		cur.Words = append(cur.Words, w)
		curLen = next
	}
	cur.End = cur.Words[len(cur.Words)-1].End
	return append(out, cur)
}

func assHeader(st Style) string {
	return fmt.Sprintf(strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 2
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Vertical, %s, %d, &H00FFFFFF, &H0000D7FF, &H00000000, &H64000000, 0,0,0,0,100,100,0,0,1,7,3,2, 60,60,%d,1
`), st.PlayResX, st.PlayResY, st.Font, st.FontSize, st.MarginV)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
