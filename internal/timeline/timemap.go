package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// ErrInvalidCuts is returned when a kept-interval list breaks ordering or bounds.
var ErrInvalidCuts = errors.New("invalid silence cuts")

const epsilon = 1e-6

// ValidateCuts checks that cuts are ascending, non-overlapping, non-empty
// and inside [0, duration].
func ValidateCuts(cuts []SilenceCut, duration float64) error {
	prevEnd := 0.0
	for i, c := range cuts {
		if c.Start < 0 || c.End <= c.Start {
			return fmt.Errorf("%w: cut %d [%.3f, %.3f) is empty or negative", ErrInvalidCuts, i, c.Start, c.End)
		}
		if c.Start < prevEnd-epsilon {
			return fmt.Errorf("%w: cut %d starts at %.3f before previous end %.3f", ErrInvalidCuts, i, c.Start, prevEnd)
		}
		if duration > 0 && c.End > duration+epsilon {
			return fmt.Errorf("%w: cut %d ends at %.3f past source duration %.3f", ErrInvalidCuts, i, c.End, duration)
		}
		prevEnd = c.End
	}
	return nil
}

// KeptDuration is the length of the post-cut timeline.
func KeptDuration(cuts []SilenceCut) float64 {
	return lo.SumBy(cuts, func(c SilenceCut) float64 { return c.Duration() })
}

// AdjustTimestamp maps an original-timeline second into post-cut time.
// It equals the kept duration strictly before t, so t - AdjustTimestamp(t)
// is the removed duration before t. An empty cut list means nothing was removed.
func AdjustTimestamp(t float64, cuts []SilenceCut) float64 {
	if len(cuts) == 0 {
		return t
	}
	kept := 0.0
	for _, c := range cuts {
		if t <= c.Start {
			break
		}
		kept += math.Min(t, c.End) - c.Start
	}
	return kept
}

// AdjustTimestamps maps every timestamp with AdjustTimestamp.
func AdjustTimestamps(ts []float64, cuts []SilenceCut) []float64 {
	return lo.Map(ts, func(t float64, _ int) float64 { return AdjustTimestamp(t, cuts) })
}

// RemovedBefore returns the removed duration strictly before t.
func RemovedBefore(t float64, cuts []SilenceCut) float64 {
	return t - AdjustTimestamp(t, cuts)
}

// ToSource maps a post-cut second back to the original timeline.
func ToSource(t float64, cuts []SilenceCut) float64 {
	if len(cuts) == 0 {
		return t
	}
	acc := 0.0
	for _, c := range cuts {
		d := c.Duration()
		if t < acc+d {
			return c.Start + math.Max(0, t-acc)
		}
		acc += d
	}
	return cuts[len(cuts)-1].End
}

// AdjustSegments moves subtitle cues into post-cut time. Cues that fall
// entirely inside removed spans are dropped and the rest are renumbered.
func AdjustSegments(segments []SubtitleSegment, cuts []SilenceCut) []SubtitleSegment {
	out := make([]SubtitleSegment, 0, len(segments))
	for _, s := range segments {
		start := AdjustTimestamp(s.Start, cuts)
		end := AdjustTimestamp(s.End, cuts)
		if end-start < 0.05 {
			continue
		}
		s.Start, s.End = start, end
		s.Index = len(out) + 1
		out = append(out, s)
	}
	return out
}

// AdjustOverlays moves overlay start times into post-cut time, keeping durations.
func AdjustOverlays(overlays []MediaOverlay, cuts []SilenceCut) []MediaOverlay {
	return lo.Map(overlays, func(o MediaOverlay, _ int) MediaOverlay {
		o.StartTime = AdjustTimestamp(o.StartTime, cuts)
		return o
	})
}

// SubtractSpans removes the given spans from the kept intervals. An empty
// kept list stands for the whole source [0, duration].
func SubtractSpans(cuts []SilenceCut, remove []SilenceCut, duration float64) []SilenceCut {
	if len(remove) == 0 {
		return cuts
	}
	kept := cuts
	if len(kept) == 0 {
		kept = []SilenceCut{{Start: 0, End: duration}}
	}
	spans := append([]SilenceCut(nil), remove...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var out []SilenceCut
	for _, c := range kept {
		pieces := []SilenceCut{c}
		for _, r := range spans {
			var next []SilenceCut
			for _, p := range pieces {
				if r.End <= p.Start || r.Start >= p.End {
					next = append(next, p)
					continue
				}
				if r.Start > p.Start {
					next = append(next, SilenceCut{Start: p.Start, End: r.Start})
				}
				if r.End < p.End {
					next = append(next, SilenceCut{Start: r.End, End: p.End})
				}
			}
			pieces = next
		}
		out = append(out, pieces...)
	}
	return out
}

// SameTiming reports whether two cue lists share identical timing.
func SameTiming(a, b []SubtitleSegment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].Start-b[i].Start) > 0.001 || math.Abs(a[i].End-b[i].End) > 0.001 {
			return false
		}
	}
	return true
}
