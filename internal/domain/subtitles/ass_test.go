package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/clipnetic/clipnetic/internal/types"
)

func TestRenderVerticalASS_KaraokeHasKTags(t *testing.T) {
	words := []types.WordSegment{
		{Start: 10.0, End: 10.3, Text: "Hello"},
		{Start: 10.3, End: 10.8, Text: "world"},
	}
	ass := RenderVerticalASS(words, types.ClipInterval{Start: 10, End: 40}, DefaultStyle())
	if !strings.Contains(ass, "{\\k30}Hello {\\k50}world") {
		t.Fatalf("expected karaoke tags in ASS, got:\n%s", ass)
	}
	if !strings.Contains(ass, "Dialogue: 0,0:00:00.00,0:00:00.80,Vertical") {
		t.Fatalf("expected clip-local event times, got:\n%s", ass)
	}
	if !strings.Contains(ass, "PlayResX: 1080") || !strings.Contains(ass, "PlayResY: 1920") || !strings.Contains(ass, "Anton") {
		t.Fatalf("expected vertical header, got:\n%s", ass)
	}
}

func TestRenderVerticalASS_RestrictsToInterval(t *testing.T) {
	words := []types.WordSegment{
		{Start: 4.0, End: 5.0, Text: "before"},
		{Start: 5.0, End: 6.0, Text: "inside"},
		{Start: 35.0, End: 36.0, Text: "after"},
	}
	ass := RenderVerticalASS(words, types.ClipInterval{Start: 5, End: 35}, DefaultStyle())
	if strings.Contains(ass, "before") || strings.Contains(ass, "after") {
		t.Fatalf("words outside the interval leaked:\n%s", ass)
	}
	if !strings.Contains(ass, "inside") {
		t.Fatalf("missing word inside the interval:\n%s", ass)
	}
}

func TestRenderVerticalASS_NoWords(t *testing.T) {
	ass := RenderVerticalASS(nil, types.ClipInterval{Start: 0, End: 30}, DefaultStyle())
	if strings.Contains(ass, "Dialogue:") {
		t.Fatalf("expected no events, got:\n%s", ass)
	}
}

func TestPackWords_Budgets(t *testing.T) {
	var ws []wword
	for i := 0; i < 10; i++ {
		d := time.Duration(i) * time.Second
		ws = append(ws, wword{Start: d, End: d + time.Second, Text: "word"})
	}
	lines := packWords(ws)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].End != 4*time.Second || lines[2].Start != 8*time.Second {
		t.Fatalf("unexpected line bounds: %+v", lines)
	}
}

func TestText(t *testing.T) {
	words := []types.WordSegment{
		{Start: 0, End: 1, Text: "skip"},
		{Start: 1, End: 2, Text: " Step "},
		{Start: 2, End: 3, Text: "one"},
	}
	if got := Text(words, types.ClipInterval{Start: 1, End: 3}); got != "Step one" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
