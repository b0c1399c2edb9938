package ports

import (
	"context"
	"time"

	"github.com/clipnetic/clipnetic/internal/types"
)

// ToolResult is what a finished external tool left behind.
type ToolResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner runs one external tool to completion. A non-zero exit is returned as
// a *types.ToolError alongside the partial result.
type Runner interface {
	Run(ctx context.Context, tool string, args []string, workdir string) (ToolResult, error)
}

type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Frames   int
	Duration time.Duration
}

// RenderSpec describes one vertical render: the segment is cropped per frame
// by the sendcmd script, scaled to OutW x OutH and muxed with Audio.
type RenderSpec struct {
	Segment     string
	Audio       string
	CropScript  string
	InitialCrop types.CropRect
	OutW        int
	OutH        int
	Out         string
}

type VideoTool interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
	Cut(ctx context.Context, src string, iv types.ClipInterval, out string) error
	ExtractAudio(ctx context.Context, in, outWav string) error
	RenderVertical(ctx context.Context, spec RenderSpec) error
	BurnSubtitles(ctx context.Context, in, assPath, out string) error
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, workdir string) ([]types.WordSegment, error)
}

// MomentProposer returns the raw, untrusted text of a candidate list.
type MomentProposer interface {
	Propose(ctx context.Context, words []types.WordSegment) (string, error)
}

type TrackRequest struct {
	Video   string
	Audio   string
	WorkDir string
}

type TrackResult struct {
	Tracks []types.Track
	Scores []types.SpeakingScore
}

// Tracker runs face tracking and active speaker detection on one segment.
// Absent or unreadable artifacts are reported as *types.MissingArtifactError.
type Tracker interface {
	Track(ctx context.Context, req TrackRequest) (TrackResult, error)
}

type ObjectStore interface {
	Download(ctx context.Context, key, dst string) error
	Upload(ctx context.Context, src, key, contentType string) error
}

type Notifier interface {
	Notify(ctx context.Context, url string, n types.Notification) error
}
