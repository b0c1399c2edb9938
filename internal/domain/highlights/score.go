package highlights

import (
	"regexp"
	"strings"

	"github.com/clipnetic/clipnetic/internal/types"
)

// openingSec is how much of a clip counts as its opening line.
const openingSec = 5.0

var (
	reFigure   = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?%?\b`)
	reCue      = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|why|remember|nobody|truth|actually)\b`)
	reTeaching = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this|because)\b`)
)

// Scores rates an accepted clip on [0..10]. It is informational only: clip
// selection never consults it.
type Scores struct {
	Info float64 `json:"info_score"`
	Hook float64 `json:"hook_score"`
}

// Score rates the words of one clip interval. Info favors figures, teaching
// phrasing and a brisk speaking rate. Hook favors cues and questions, and
// counts them double when they land in the opening seconds.
func Score(words []types.WordSegment, iv types.ClipInterval) Scores {
	var all, opening []string
	var spoken float64
	for _, w := range words {
		if w.Start < iv.Start || w.Start >= iv.End {
			continue
		}
		t := strings.TrimSpace(w.Text)
		if t == "" {
			continue
		}
		all = append(all, t)
		spoken += w.End - w.Start
		if w.Start < iv.Start+openingSec {
			opening = append(opening, t)
		}
	}
	if len(all) == 0 {
		return Scores{}
	}
	text := strings.Join(all, " ")
	head := strings.Join(opening, " ")

	info := float64(len(reFigure.FindAllStringIndex(text, -1))) * 0.4
	info += float64(len(reTeaching.FindAllStringIndex(text, -1))) * 0.5
	if d := iv.Duration(); d > 0 {
		// dead air lowers density
		info += 2 * (spoken / d)
	}

	hook := float64(len(reCue.FindAllStringIndex(text, -1))) * 0.6
	hook += float64(len(reCue.FindAllStringIndex(head, -1))) * 0.6
	hook += float64(strings.Count(text, "?")) * 0.5
	hook += float64(strings.Count(head, "?")) * 0.5
	hook += float64(strings.Count(text, "!")) * 0.3

	return Scores{Info: clamp(info, 0, 10), Hook: clamp(hook, 0, 10)}
}

func clamp(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}
