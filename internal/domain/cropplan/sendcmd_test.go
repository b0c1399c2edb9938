package cropplan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipnetic/clipnetic/internal/types"
)

func TestSendCmdScript(t *testing.T) {
	geo := NewGeometry(1920, 1080, 1080, 1920)
	var plan []types.CropPlan
	for f := 0; f < 50; f++ {
		cx := 960.0
		if f >= 25 {
			cx = 970
		}
		plan = append(plan, types.CropPlan{FrameIndex: f, CenterX: cx, CenterY: 540, Zoom: 1})
	}

	script, err := SendCmdScript(plan, geo, 25)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(script), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0.000000 crop w 606, crop h 1080, crop x 657, crop y 0;", lines[0])
	assert.Equal(t, "1.000000 crop x 667;", lines[1])
}

func TestSendCmdScript_Errors(t *testing.T) {
	geo := NewGeometry(1920, 1080, 1080, 1920)
	_, err := SendCmdScript(nil, geo, 25)
	assert.Error(t, err)
	_, err = SendCmdScript([]types.CropPlan{{Zoom: 1}}, geo, 0)
	assert.Error(t, err)
}

func TestGeometry(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		baseW, baseH float64
		native       float64
	}{
		{"landscape 1080p", 1920, 1080, 607.5, 1080, 1},
		{"landscape 4k", 3840, 2160, 1215, 2160, 1.125},
		{"already vertical", 1080, 1920, 1080, 1920, 1},
		{"narrow", 720, 1920, 720, 1280, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeometry(tt.w, tt.h, 1080, 1920)
			assert.InDelta(t, tt.baseW, g.BaseW, 1e-9)
			assert.InDelta(t, tt.baseH, g.BaseH, 1e-9)
			assert.InDelta(t, tt.native, g.NativeZoom, 1e-9)
		})
	}
}

func TestSmoothZoomNeverExceedsRaw(t *testing.T) {
	raw := []float64{2, 2, 2, 1.2, 2, 2, 1.5, 1.5, 2, 2, 2, 2, 1, 2}
	got := smoothZoom(raw, 3)
	require.Len(t, got, len(raw))
	for i := range raw {
		assert.LessOrEqual(t, got[i], raw[i]+1e-12, "index %d", i)
	}
}

func TestMovingAveragePreservesLines(t *testing.T) {
	xs := make([]float64, 40)
	for i := range xs {
		xs[i] = 3*float64(i) + 1
	}
	got := movingAverage(xs, 5)
	for i := 5; i < 35; i++ {
		assert.InDelta(t, xs[i], got[i], 1e-9)
	}
	// Replicated edges pull the ends inward but never past the data range.
	assert.GreaterOrEqual(t, got[0], xs[0])
	assert.LessOrEqual(t, got[39], xs[39])
}
