package highlights

import (
	"strings"
	"testing"

	"github.com/clipnetic/clipnetic/internal/types"
)

// spoken lays text out one word per second starting at from.
func spoken(from float64, text string) []types.WordSegment {
	var out []types.WordSegment
	for i, w := range strings.Fields(text) {
		s := from + float64(i)
		out = append(out, types.WordSegment{Start: s, End: s + 0.8, Text: w})
	}
	return out
}

func TestScore_Table(t *testing.T) {
	iv := types.ClipInterval{Start: 0, End: 30}
	tests := []struct {
		name     string
		words    []types.WordSegment
		wantHook bool
	}{
		{"figures", spoken(0, "Step 1: do X. Step 2: measure 42ms."), false},
		{"howto", spoken(0, "How to fix it: first do this, then do that."), false},
		{"cue", spoken(0, "Here is the important part!"), true},
		{"question", spoken(0, "Nobody tells you the truth about sleep, right?"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Score(tt.words, iv)
			if s.Info <= 0 {
				t.Fatalf("expected info>0, got %v", s.Info)
			}
			if tt.wantHook && s.Hook <= 0 {
				t.Fatalf("expected hook>0, got %v", s.Hook)
			}
			if !tt.wantHook && s.Hook != 0 {
				t.Fatalf("expected hook==0, got %v", s.Hook)
			}
		})
	}
}

func TestScore_NoWordsInInterval(t *testing.T) {
	words := spoken(100, "remember this secret")
	for _, ws := range [][]types.WordSegment{nil, spoken(0, "   "), words} {
		if s := Score(ws, types.ClipInterval{Start: 0, End: 30}); s != (Scores{}) {
			t.Fatalf("expected zero scores, got %+v", s)
		}
	}
}

func TestScore_OpeningHookCountsDouble(t *testing.T) {
	iv := types.ClipInterval{Start: 0, End: 40}
	filler := "and then we went on with the talk for a while"

	early := append(spoken(0, "never do this"), spoken(10, filler)...)
	late := append(spoken(0, filler), spoken(30, "never do this")...)

	e, l := Score(early, iv), Score(late, iv)
	if e.Hook <= l.Hook {
		t.Fatalf("opening cue should score higher: early=%v late=%v", e.Hook, l.Hook)
	}
}

func TestScore_Bounded(t *testing.T) {
	long := strings.Repeat("Remember this secret! Step 3? Why 42? ", 200)
	s := Score(spoken(0, long), types.ClipInterval{Start: 0, End: 2000})
	if s.Info < 0 || s.Info > 10 || s.Hook < 0 || s.Hook > 10 {
		t.Fatalf("scores out of range: %+v", s)
	}
}
