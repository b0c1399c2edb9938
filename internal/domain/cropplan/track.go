package cropplan

import (
	"math"
	"sort"

	"github.com/clipnetic/clipnetic/internal/types"
)

const noTrack = math.MinInt

type scoreKey struct {
	track int
	frame int
}

type trackIndex struct {
	ids     []int
	boxes   map[int]map[int]types.BBox
	frames  map[int][]int
	scores  map[scoreKey]float64
	inRange bool
}

// sample is the raw (unsmoothed) signal for one frame.
type sample struct {
	cx, cy float64
	box    types.BBox
	hasBox bool
}

func newTrackIndex(tracks []types.Track, scores []types.SpeakingScore, first, last int) *trackIndex {
	ix := &trackIndex{
		boxes:  make(map[int]map[int]types.BBox, len(tracks)),
		frames: make(map[int][]int, len(tracks)),
		scores: make(map[scoreKey]float64, len(scores)),
	}
	for _, t := range tracks {
		m, ok := ix.boxes[t.TrackID]
		if !ok {
			m = make(map[int]types.BBox, len(t.Frames))
			ix.boxes[t.TrackID] = m
			ix.ids = append(ix.ids, t.TrackID)
		}
		for _, f := range t.Frames {
			if f.BBox.W <= 0 || f.BBox.H <= 0 {
				continue
			}
			if _, dup := m[f.FrameIndex]; !dup {
				ix.frames[t.TrackID] = append(ix.frames[t.TrackID], f.FrameIndex)
			}
			m[f.FrameIndex] = f.BBox
			if f.FrameIndex >= first && f.FrameIndex <= last {
				ix.inRange = true
			}
		}
	}
	sort.Ints(ix.ids)
	for id := range ix.frames {
		sort.Ints(ix.frames[id])
	}
	for _, s := range scores {
		k := scoreKey{track: s.TrackID, frame: s.FrameIndex}
		if prev, ok := ix.scores[k]; !ok || s.Score > prev {
			ix.scores[k] = s.Score
		}
	}
	return ix
}

func (ix *trackIndex) empty() bool { return !ix.inRange }

func (ix *trackIndex) box(id, frame int) (types.BBox, bool) {
	b, ok := ix.boxes[id][frame]
	return b, ok
}

// follow walks the clip frame by frame, keeping track of the active speaker,
// and returns the raw center (and box, when known) per frame.
func (ix *trackIndex) follow(first, n int, cfg Config, geo Geometry) []sample {
	out := make([]sample, n)
	active := noTrack
	cx, cy := geo.Center()
	last := sample{cx: cx, cy: cy}

	for i := 0; i < n; i++ {
		f := first + i
		active = ix.assign(f, active, cfg.MinScore)
		s, ok := ix.sampleAt(active, f, cfg.MaxOcclusionGap)
		if !ok && active != noTrack {
			// Lost for longer than the occlusion gap: continue with whoever is on screen.
			if alt := ix.fallback(f); alt != noTrack {
				active = alt
				s, ok = ix.sampleAt(active, f, 0)
			}
		}
		if !ok {
			s = sample{cx: last.cx, cy: last.cy}
		}
		out[i] = s
		last = s
	}
	return out
}

// assign picks the active track for frame f. Ties on the top score keep prev
// when it is among them, otherwise the lowest track id wins.
func (ix *trackIndex) assign(f, prev int, minScore float64) int {
	best, bestScore := noTrack, 0.0
	for _, id := range ix.ids {
		if _, ok := ix.box(id, f); !ok {
			continue
		}
		s, ok := ix.scores[scoreKey{track: id, frame: f}]
		if !ok || s <= minScore {
			continue
		}
		switch {
		case best == noTrack || s > bestScore:
			best, bestScore = id, s
		case s == bestScore && id == prev:
			best = id
		}
	}
	if best != noTrack {
		return best
	}
	if prev != noTrack {
		return prev
	}
	return ix.largestPresent(f)
}

func (ix *trackIndex) largestPresent(f int) int {
	best, bestArea := noTrack, 0.0
	for _, id := range ix.ids {
		b, ok := ix.box(id, f)
		if !ok {
			continue
		}
		if best == noTrack || b.Area() > bestArea {
			best, bestArea = id, b.Area()
		}
	}
	return best
}

// fallback ranks the tracks present at f by score (any value), then area.
func (ix *trackIndex) fallback(f int) int {
	best := noTrack
	var bestScore, bestArea float64
	for _, id := range ix.ids {
		b, ok := ix.box(id, f)
		if !ok {
			continue
		}
		s, scored := ix.scores[scoreKey{track: id, frame: f}]
		if !scored {
			s = math.Inf(-1)
		}
		if best == noTrack || s > bestScore || (s == bestScore && b.Area() > bestArea) {
			best, bestScore, bestArea = id, s, b.Area()
		}
	}
	return best
}

// sampleAt returns the box of track id at frame f, interpolated linearly
// between the nearest known frames when the hole is at most maxGap frames.
// A hole with only one known side holds that side's box for up to maxGap
// frames.
func (ix *trackIndex) sampleAt(id, f, maxGap int) (sample, bool) {
	if id == noTrack {
		return sample{}, false
	}
	if b, ok := ix.box(id, f); ok {
		return boxSample(b), true
	}
	frames := ix.frames[id]
	j := sort.SearchInts(frames, f)
	switch {
	case len(frames) == 0:
		return sample{}, false
	case j == len(frames):
		// Track ended before f: hold its last box through a short gap.
		if p := frames[j-1]; f-p <= maxGap {
			return boxSample(ix.boxes[id][p]), true
		}
		return sample{}, false
	case j == 0:
		if q := frames[0]; q-f <= maxGap {
			return boxSample(ix.boxes[id][q]), true
		}
		return sample{}, false
	}
	p, q := frames[j-1], frames[j]
	if q-p-1 > maxGap {
		return sample{}, false
	}
	a, b := ix.boxes[id][p], ix.boxes[id][q]
	t := float64(f-p) / float64(q-p)
	return boxSample(types.BBox{
		X: lerp(a.X, b.X, t),
		Y: lerp(a.Y, b.Y, t),
		W: lerp(a.W, b.W, t),
		H: lerp(a.H, b.H, t),
	}), true
}

func boxSample(b types.BBox) sample {
	cx, cy := b.Center()
	return sample{cx: cx, cy: cy, box: b, hasBox: true}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
