package cropplan

import (
	"github.com/clipnetic/clipnetic/internal/types"
)

// Config holds the tunables of the planner. Frame counts are in output frames.
type Config struct {
	// MinScore is the speaking score a track must exceed to take over.
	MinScore float64
	// MaxOcclusionGap is the longest run of missing boxes that is bridged by
	// interpolation before the planner looks for another track.
	MaxOcclusionGap int
	// SmoothRadius is the half-width of the center moving average (window 2r+1).
	SmoothRadius int
	// ZoomRadius is the half-width used to smooth zoom-outs.
	ZoomRadius int
	// FacePadding is the margin kept around the face box, as a fraction of its size.
	FacePadding float64
	TargetW     int
	TargetH     int
}

func DefaultConfig() Config {
	return Config{
		MinScore:        0,
		MaxOcclusionGap: 15,
		SmoothRadius:    12,
		ZoomRadius:      25,
		FacePadding:     0.25,
		TargetW:         1080,
		TargetH:         1920,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxOcclusionGap < 0 {
		c.MaxOcclusionGap = 0
	}
	if c.SmoothRadius < 0 {
		c.SmoothRadius = 0
	}
	if c.ZoomRadius < 0 {
		c.ZoomRadius = 0
	}
	if c.FacePadding < 0 {
		c.FacePadding = 0
	}
	if c.TargetW <= 0 || c.TargetH <= 0 {
		c.TargetW, c.TargetH = 1080, 1920
	}
	return c
}

// Input is everything the planner knows about one clip. FirstFrame and
// LastFrame are inclusive.
type Input struct {
	Tracks     []types.Track
	Scores     []types.SpeakingScore
	FirstFrame int
	LastFrame  int
	Width      int
	Height     int
}

// Plan returns one CropPlan per frame of [in.FirstFrame, in.LastFrame]. It
// never fails on missing signal: without any track in range the result is a
// fixed center crop. An empty or inverted range, or a zero frame size, yields nil.
func Plan(in Input, cfg Config) []types.CropPlan {
	cfg = cfg.withDefaults()
	n := in.LastFrame - in.FirstFrame + 1
	if n <= 0 || in.Width <= 0 || in.Height <= 0 {
		return nil
	}
	geo := NewGeometry(in.Width, in.Height, cfg.TargetW, cfg.TargetH)

	ix := newTrackIndex(in.Tracks, in.Scores, in.FirstFrame, in.LastFrame)
	if ix.empty() {
		return centerPlan(in.FirstFrame, n, geo)
	}

	samples := ix.follow(in.FirstFrame, n, cfg, geo)

	xs := make([]float64, n)
	ys := make([]float64, n)
	zooms := make([]float64, n)
	for i, s := range samples {
		xs[i], ys[i] = s.cx, s.cy
		zooms[i] = geo.NativeZoom
		if s.hasBox {
			zooms[i] = geo.FitZoom(s.box, cfg.FacePadding)
		}
	}
	xs = movingAverage(xs, cfg.SmoothRadius)
	ys = movingAverage(ys, cfg.SmoothRadius)
	zooms = smoothZoom(zooms, cfg.ZoomRadius)

	out := make([]types.CropPlan, n)
	for i := range out {
		cx, cy := geo.Clamp(xs[i], ys[i], zooms[i])
		out[i] = types.CropPlan{
			FrameIndex: in.FirstFrame + i,
			CenterX:    cx,
			CenterY:    cy,
			Zoom:       zooms[i],
		}
	}
	return out
}

func centerPlan(first, n int, geo Geometry) []types.CropPlan {
	cx, cy := geo.Center()
	out := make([]types.CropPlan, n)
	for i := range out {
		out[i] = types.CropPlan{FrameIndex: first + i, CenterX: cx, CenterY: cy, Zoom: geo.NativeZoom}
	}
	return out
}
