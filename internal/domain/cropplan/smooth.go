package cropplan

// movingAverage is a centered box filter of width 2r+1. Edges replicate the
// first and last value, so the window size never changes and a step between
// neighbours is bounded by (max-min)/(2r+1).
func movingAverage(xs []float64, r int) []float64 {
	out := make([]float64, len(xs))
	if r <= 0 {
		copy(out, xs)
		return out
	}
	width := float64(2*r + 1)
	for i := range xs {
		sum := 0.0
		for j := i - r; j <= i+r; j++ {
			sum += xs[clampIndex(j, len(xs))]
		}
		out[i] = sum / width
	}
	return out
}

func slidingMin(xs []float64, r int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		m := xs[i]
		for j := i - r; j <= i+r; j++ {
			if v := xs[clampIndex(j, len(xs))]; v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// smoothZoom erodes then averages with the same radius. Every averaged term
// is a minimum over a window containing i, so the result never exceeds the
// raw zoom at i and a face that fits keeps fitting.
func smoothZoom(zs []float64, r int) []float64 {
	if r <= 0 {
		return movingAverage(zs, 0)
	}
	return movingAverage(slidingMin(zs, r), r)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
