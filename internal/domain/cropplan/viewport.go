package cropplan

import (
	"math"

	"github.com/clipnetic/clipnetic/internal/types"
)

// Geometry describes the crop windows available for one source size. The base
// window is the largest target-aspect rectangle inscribed in the source; a
// zoom of z crops BaseW/z x BaseH/z. Zoom never drops below 1.
type Geometry struct {
	SrcW, SrcH   int
	BaseW, BaseH float64
	// NativeZoom maps the base window onto the target resolution without
	// upscaling (1 when the source is smaller than the target).
	NativeZoom float64
}

func NewGeometry(srcW, srcH, targetW, targetH int) Geometry {
	aspect := float64(targetW) / float64(targetH)
	bw, bh := float64(srcW), float64(srcW)/aspect
	if bh > float64(srcH) {
		bh = float64(srcH)
		bw = bh * aspect
	}
	return Geometry{
		SrcW:       srcW,
		SrcH:       srcH,
		BaseW:      bw,
		BaseH:      bh,
		NativeZoom: math.Max(1, bh/float64(targetH)),
	}
}

func (g Geometry) Center() (float64, float64) {
	return float64(g.SrcW) / 2, float64(g.SrcH) / 2
}

func (g Geometry) Window(zoom float64) (float64, float64) {
	if zoom < 1 {
		zoom = 1
	}
	return g.BaseW / zoom, g.BaseH / zoom
}

// FitZoom is the largest zoom, capped at NativeZoom, at which box plus
// padding still fits in the window.
func (g Geometry) FitZoom(box types.BBox, pad float64) float64 {
	if box.W <= 0 || box.H <= 0 {
		return g.NativeZoom
	}
	zw := g.BaseW / (box.W * (1 + pad))
	zh := g.BaseH / (box.H * (1 + pad))
	return clamp(math.Min(g.NativeZoom, math.Min(zw, zh)), 1, g.NativeZoom)
}

// Clamp moves a center so the window at zoom stays inside the source.
func (g Geometry) Clamp(cx, cy, zoom float64) (float64, float64) {
	w, h := g.Window(zoom)
	return clamp(cx, w/2, float64(g.SrcW)-w/2), clamp(cy, h/2, float64(g.SrcH)-h/2)
}

// Rect converts a plan entry to an integer crop with even dimensions, as
// yuv420p needs.
func (g Geometry) Rect(p types.CropPlan) types.CropRect {
	fw, fh := g.Window(p.Zoom)
	w := evenFloor(fw, g.SrcW)
	h := evenFloor(fh, g.SrcH)
	x := int(math.Round(p.CenterX - float64(w)/2))
	y := int(math.Round(p.CenterY - float64(h)/2))
	return types.CropRect{
		X: clampInt(x, 0, g.SrcW-w),
		Y: clampInt(y, 0, g.SrcH-h),
		W: w,
		H: h,
	}
}

func evenFloor(v float64, limit int) int {
	n := int(v) &^ 1
	if n > limit {
		n = limit &^ 1
	}
	if n < 2 {
		n = 2
	}
	return n
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
