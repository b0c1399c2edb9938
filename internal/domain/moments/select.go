package moments

import (
	"fmt"
	"sort"

	"github.com/clipnetic/clipnetic/internal/types"
)

const (
	DefaultMinSec   = 30.0
	DefaultMaxSec   = 60.0
	DefaultMaxClips = 3

	// durationEpsilon absorbs float subtraction noise on boundary timestamps
	// (75.34-45.34 is not exactly 30).
	durationEpsilon = 1e-9
)

type Config struct {
	MinSec   float64
	MaxSec   float64
	MaxClips int
}

func DefaultConfig() Config {
	return Config{MinSec: DefaultMinSec, MaxSec: DefaultMaxSec, MaxClips: DefaultMaxClips}
}

func (c Config) withDefaults() Config {
	if c.MinSec <= 0 {
		c.MinSec = DefaultMinSec
	}
	if c.MaxSec <= 0 {
		c.MaxSec = DefaultMaxSec
	}
	if c.MaxClips <= 0 {
		c.MaxClips = DefaultMaxClips
	}
	return c
}

// Result is the outcome of one selection pass. Intervals is always usable,
// even when ParseErr or Rejected are set.
type Result struct {
	Intervals []types.ClipInterval
	Rejected  []types.Rejection
	ParseErr  error
}

// Err returns a *types.ValidationError when any candidate was dropped.
func (r Result) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	return &types.ValidationError{Rejected: r.Rejected}
}

type accepted struct {
	start, end float64
	pos        int
}

// Select validates raw proposer output against the transcript and returns at
// most cfg.MaxClips non-overlapping intervals in ascending start order.
// Candidates are never shifted or trimmed: anything that fails a rule is
// dropped and reported in Result.Rejected.
func Select(words []types.WordSegment, raw string, cfg Config) Result {
	cfg = cfg.withDefaults()

	cands, err := ParseCandidates(raw)
	if err != nil {
		return Result{ParseErr: err}
	}

	boundaries := boundarySet(words)
	var (
		res      Result
		survived []accepted
	)
	reject := func(pos int, c RawCandidate, reason string) {
		res.Rejected = append(res.Rejected, types.Rejection{Position: pos, Start: c.Start, End: c.End, Reason: reason})
	}

	for i, c := range cands {
		if !c.OK {
			reject(i, c, c.Reason)
			continue
		}
		d := c.End - c.Start
		if d < cfg.MinSec-durationEpsilon || d > cfg.MaxSec+durationEpsilon {
			reject(i, c, fmt.Sprintf("duration %.3fs outside [%g, %g]", d, cfg.MinSec, cfg.MaxSec))
			continue
		}
		if _, ok := boundaries[c.Start]; !ok {
			reject(i, c, fmt.Sprintf("start %.3f is not a word boundary", c.Start))
			continue
		}
		if _, ok := boundaries[c.End]; !ok {
			reject(i, c, fmt.Sprintf("end %.3f is not a word boundary", c.End))
			continue
		}
		survived = append(survived, accepted{start: c.Start, end: c.End, pos: i})
	}

	// Greedy interval scheduling by start: the earlier-starting candidate wins
	// any overlap. Ties on start keep the shorter one, then proposal order.
	sort.SliceStable(survived, func(i, j int) bool {
		if survived[i].start != survived[j].start {
			return survived[i].start < survived[j].start
		}
		return survived[i].end < survived[j].end
	})

	lastEnd := 0.0
	for _, c := range survived {
		if len(res.Intervals) > 0 && c.start < lastEnd {
			reject(c.pos, RawCandidate{Start: c.start, End: c.end}, fmt.Sprintf("overlaps accepted interval ending at %.3f", lastEnd))
			continue
		}
		if len(res.Intervals) >= cfg.MaxClips {
			reject(c.pos, RawCandidate{Start: c.start, End: c.end}, fmt.Sprintf("over the %d clip cap", cfg.MaxClips))
			continue
		}
		res.Intervals = append(res.Intervals, types.ClipInterval{Start: c.start, End: c.end, Index: len(res.Intervals)})
		lastEnd = c.end
	}

	sort.SliceStable(res.Rejected, func(i, j int) bool { return res.Rejected[i].Position < res.Rejected[j].Position })
	return res
}

func boundarySet(words []types.WordSegment) map[float64]struct{} {
	out := make(map[float64]struct{}, 2*len(words))
	for _, w := range words {
		out[w.Start] = struct{}{}
		out[w.End] = struct{}{}
	}
	return out
}
