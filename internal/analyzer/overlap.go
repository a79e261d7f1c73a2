package analyzer

import (
	"sort"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// DefaultMinGap is the minimum spacing between two overlays, seconds.
const DefaultMinGap = 0.5

type candidate struct {
	o       timeline.MediaOverlay
	isImage bool
}

// AvoidOverlaps resolves time conflicts between B-roll and image overlays.
//
// Candidates are walked in start order. A candidate that comes within minGap
// of an accepted overlay is moved to just after it, or, when that runs past
// videoDuration, to just before it. If neither spot is free it is dropped.
// The walk is greedy and not globally optimal. An already resolved set comes
// back unchanged.
func AvoidOverlaps(broll, images []timeline.MediaOverlay, videoDuration, minGap float64) ([]timeline.MediaOverlay, []timeline.MediaOverlay) {
	all := make([]candidate, 0, len(broll)+len(images))
	for _, o := range broll {
		all = append(all, candidate{o: o})
	}
	for _, o := range images {
		all = append(all, candidate{o: o, isImage: true})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].o.StartTime < all[j].o.StartTime })

	var accepted []candidate
	for _, c := range all {
		if c.o.Duration <= 0 || c.o.Duration > videoDuration {
			continue
		}
		if c.o.StartTime < 0 {
			c.o.StartTime = 0
		}
		if c.o.End() > videoDuration {
			c.o.StartTime = videoDuration - c.o.Duration
		}

		conflict, ok := firstConflict(c.o, accepted, minGap)
		if !ok {
			accepted = append(accepted, c)
			continue
		}

		after := c
		after.o.StartTime = conflict.End() + minGap
		if after.o.End() <= videoDuration {
			if _, clash := firstConflict(after.o, accepted, minGap); !clash {
				accepted = append(accepted, after)
				continue
			}
		}

		before := c
		before.o.StartTime = conflict.StartTime - minGap - c.o.Duration
		if before.o.StartTime >= 0 {
			if _, clash := firstConflict(before.o, accepted, minGap); !clash {
				accepted = append(accepted, before)
			}
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].o.StartTime < accepted[j].o.StartTime })

	var outBroll, outImages []timeline.MediaOverlay
	for _, c := range accepted {
		if c.isImage {
			outImages = append(outImages, c.o)
		} else {
			outBroll = append(outBroll, c.o)
		}
	}
	return outBroll, outImages
}

func firstConflict(o timeline.MediaOverlay, accepted []candidate, gap float64) (timeline.MediaOverlay, bool) {
	for _, a := range accepted {
		if o.StartTime < a.o.End()+gap && a.o.StartTime < o.End()+gap {
			return a.o, true
		}
	}
	return timeline.MediaOverlay{}, false
}

// minTrimmed is the shortest overlay worth keeping after ClearWindow trims it.
const minTrimmed = 1.0

// ClearWindow makes room for a fixed overlay over [start, end]. Overlays
// reaching into the window (or within minGap before it) are cut to end
// minGap before start, or dropped when less than a second would remain.
func ClearWindow(overlays []timeline.MediaOverlay, start, end, minGap float64) []timeline.MediaOverlay {
	limit := start - minGap
	out := make([]timeline.MediaOverlay, 0, len(overlays))
	for _, o := range overlays {
		switch {
		case o.End() <= limit || o.StartTime >= end+minGap:
			out = append(out, o)
		case limit-o.StartTime >= minTrimmed:
			o.Duration = limit - o.StartTime
			out = append(out, o)
		}
	}
	return out
}
