package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

type Adapter struct {
	run   ports.Runner
	bin   string
	model string
	// Threads is passed as -t when positive.
	Threads int
}

func New(run ports.Runner, binPath, modelPath string) *Adapter {
	return &Adapter{run: run, bin: binPath, model: modelPath}
}

var _ ports.ASR = (*Adapter)(nil)

// output is the -oj layout. With -ml 1 -sow every entry is one word.
type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workdir string) ([]types.WordSegment, error) {
	outPrefix := filepath.Join(workdir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-ml", "1",
		"-sow",
		"-oj",
		"-of", outPrefix,
	}
	if a.Threads > 0 {
		args = append(args, "-t", fmt.Sprint(a.Threads))
	}
	if _, err := a.run.Run(ctx, a.bin, args, workdir); err != nil {
		return nil, fmt.Errorf("%w: whisper.cpp: %w", types.ErrTranscription, err)
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscription, err)
	}
	words, err := parseWords(jb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrTranscription, err)
	}
	return words, nil
}

func parseWords(b []byte) ([]types.WordSegment, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	words := make([]types.WordSegment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		text := strings.TrimSpace(t.Text)
		if text == "" || strings.HasPrefix(text, "[_") {
			continue
		}
		if t.Offsets.To <= t.Offsets.From {
			continue
		}
		words = append(words, types.WordSegment{
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  text,
		})
	}
	sort.SliceStable(words, func(i, j int) bool { return words[i].Start < words[j].Start })
	return words, nil
}
