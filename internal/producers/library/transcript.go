// Package library holds the local producers used when no AI service is
// configured: sidecar captions, word statistics and asset folders.
package library

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// Sidecar reads captions from the .srt file next to the video.
type Sidecar struct{}

func (Sidecar) Transcribe(_ context.Context, videoPath string) ([]timeline.SubtitleSegment, error) {
	segs, err := subtitle.ParseFile(subtitle.SidecarPath(videoPath))
	if err != nil {
		return nil, fmt.Errorf("sidecar captions: %w", err)
	}
	return segs, nil
}

// SidecarFirst uses the sidecar captions when the file exists and asks
// Fallback otherwise.
type SidecarFirst struct {
	Fallback interface {
		Transcribe(ctx context.Context, videoPath string) ([]timeline.SubtitleSegment, error)
	}
}

func (s SidecarFirst) Transcribe(ctx context.Context, videoPath string) ([]timeline.SubtitleSegment, error) {
	if _, err := os.Stat(subtitle.SidecarPath(videoPath)); err == nil || s.Fallback == nil {
		return Sidecar{}.Transcribe(ctx, videoPath)
	}
	return s.Fallback.Transcribe(ctx, videoPath)
}

// Identity returns cues unchanged.
type Identity struct{}

func (Identity) Correct(_ context.Context, segments []timeline.SubtitleSegment, _ string) ([]timeline.SubtitleSegment, error) {
	return append([]timeline.SubtitleSegment(nil), segments...), nil
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "because": true, "before": true,
	"being": true, "between": true, "could": true, "every": true, "other": true,
	"people": true, "really": true, "should": true, "something": true, "their": true,
	"there": true, "these": true, "thing": true, "things": true, "think": true,
	"those": true, "through": true, "today": true, "where": true, "which": true,
	"while": true, "would": true, "going": true, "right": true, "actually": true,
}

// FrequencyTerms picks the most repeated long words as key terms.
type FrequencyTerms struct {
	Max     int // default 8
	MinLen  int // default 6
	MinSeen int // default 2
}

func (f FrequencyTerms) KeyTerms(_ context.Context, segments []timeline.SubtitleSegment, _ string) ([]string, error) {
	maxTerms, minLen, minSeen := f.Max, f.MinLen, f.MinSeen
	if maxTerms <= 0 {
		maxTerms = 8
	}
	if minLen <= 0 {
		minLen = 6
	}
	if minSeen <= 0 {
		minSeen = 2
	}

	counts := map[string]int{}
	first := map[string]int{}
	pos := 0
	for _, w := range words(subtitle.PlainText(segments)) {
		if len(w) < minLen || stopWords[w] {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = pos
			pos++
		}
		counts[w]++
	}

	var terms []string
	for w, n := range counts {
		if n >= minSeen {
			terms = append(terms, w)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return first[terms[i]] < first[terms[j]]
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return terms, nil
}

// EvenSuggester spreads overlays evenly over the speech, keyed by the most
// telling word spoken at each slot.
type EvenSuggester struct {
	Duration float64 // overlay length, default 4s
}

func (e EvenSuggester) Suggest(_ context.Context, transcript []timeline.SubtitleSegment, _ string, counts analyzer.MediaCounts) ([]analyzer.Suggestion, error) {
	total := counts.Broll + counts.Images
	if total == 0 || len(transcript) == 0 {
		return nil, nil
	}
	dur := e.Duration
	if dur <= 0 {
		dur = 4.0
	}

	begin, end := transcript[0].Start, transcript[len(transcript)-1].End
	span := end - begin
	broll, images := counts.Broll, counts.Images

	var out []analyzer.Suggestion
	for i := 0; i < total; i++ {
		at := begin + span*float64(i+1)/float64(total+1)
		seg := segmentAt(transcript, at)
		keyword := salientWord(seg.Text)
		if keyword == "" {
			continue
		}

		kind := timeline.KindImage
		if (i%2 == 0 && broll > 0) || images == 0 {
			kind = timeline.KindBroll
			broll--
		} else {
			images--
		}
		out = append(out, analyzer.Suggestion{
			Start:    at,
			Duration: dur,
			Keyword:  keyword,
			Prompt:   keyword,
			Kind:     kind,
		})
	}
	return out, nil
}

// segmentAt returns the cue covering t, or the nearest one.
func segmentAt(segments []timeline.SubtitleSegment, t float64) timeline.SubtitleSegment {
	best := segments[0]
	bestDist := -1.0
	for _, s := range segments {
		if t >= s.Start && t < s.End {
			return s
		}
		d := min(abs(t-s.Start), abs(t-s.End))
		if bestDist < 0 || d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

// salientWord is the longest word that is not a stop word.
func salientWord(text string) string {
	best := ""
	for _, w := range words(text) {
		if stopWords[w] {
			continue
		}
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
