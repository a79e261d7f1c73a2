package analyzer

import (
	"context"
	"image"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// ZoomMode selects how zoom keyframes are derived
type ZoomMode string

const (
	ZoomOff       ZoomMode = "off"
	ZoomBreathing ZoomMode = "breathing"
	ZoomFocal     ZoomMode = "focal"
	ZoomFace      ZoomMode = "face"
	ZoomHybrid    ZoomMode = "hybrid"
)

var zoomIntensity = map[string]float64{
	"subtle": 1.05,
	"medium": 1.15,
	"strong": 1.25,
}

// max zoom change per output frame
var zoomSmoothness = map[string]float64{
	"low":    0.1,
	"medium": 0.05,
	"high":   0.02,
}

// MaxZoomFor maps an intensity name to the peak zoom factor.
func MaxZoomFor(intensity string) float64 {
	if z, ok := zoomIntensity[intensity]; ok {
		return z
	}
	return zoomIntensity["medium"]
}

// ZoomOptions tunes zoom analysis.
type ZoomOptions struct {
	Mode        ZoomMode
	Intensity   string
	Smoothness  string
	Step        float64 // keyframe spacing, seconds
	Cycle       float64 // breathing cycle, seconds
	SampleEvery float64 // frame analysis spacing, seconds
	FPS         int
}

// DefaultZoomOptions returns a subtle zoom, 0.5s step over a 6s breathing cycle.
func DefaultZoomOptions() ZoomOptions {
	return ZoomOptions{
		Mode:        ZoomHybrid,
		Intensity:   "subtle",
		Smoothness:  "medium",
		Step:        0.5,
		Cycle:       6.0,
		SampleEvery: 3.0,
		FPS:         30,
	}
}

// FrameSampler returns the frame shown at a post-cut second.
type FrameSampler interface {
	SampleFrame(ctx context.Context, t float64) (image.Image, error)
}

// TranscriptCues are speech timing hints in post-cut seconds.
type TranscriptCues struct {
	Pauses         []float64
	SectionChanges []float64
}

var sectionWords = map[string]bool{
	"so": true, "now": true, "next": true, "however": true,
	"but": true, "meanwhile": true, "therefore": true,
}

// CuesFromTranscript finds pauses (gaps over 2s) and cues that open with a
// transition word.
func CuesFromTranscript(segments []timeline.SubtitleSegment) TranscriptCues {
	var cues TranscriptCues
	lastEnd := 0.0
	for _, s := range segments {
		if s.Start-lastEnd > 2.0 {
			cues.Pauses = append(cues.Pauses, s.Start)
		}
		fields := strings.Fields(strings.ToLower(s.Text))
		if len(fields) > 0 && sectionWords[strings.Trim(fields[0], ",.!?;:")] {
			cues.SectionChanges = append(cues.SectionChanges, s.Start)
		}
		lastEnd = s.End
	}
	return cues
}

// BreathingZoom is a half-period sine over each cycle: zoom in for the
// first half, out for the second.
func BreathingZoom(t, cycle, maxZoom float64) float64 {
	if cycle <= 0 {
		return 1.0
	}
	pos := math.Mod(t, cycle) / cycle
	return 1 + (maxZoom-1)*math.Sin(pos*math.Pi)
}

// ZoomSmoother caps how far a value may move between consecutive samples.
type ZoomSmoother struct {
	MaxDelta float64
	last     float64
	primed   bool
}

// NewZoomSmoother creates a smoother with the given per-sample cap.
func NewZoomSmoother(maxDelta float64) *ZoomSmoother {
	return &ZoomSmoother{MaxDelta: maxDelta}
}

// Next moves toward target by at most MaxDelta and returns the new value.
func (s *ZoomSmoother) Next(target float64) float64 {
	if !s.primed {
		s.last, s.primed = target, true
		return target
	}
	d := math.Max(-s.MaxDelta, math.Min(s.MaxDelta, target-s.last))
	s.last += d
	return s.last
}

// AnalyzeZoom produces keyframes over [0, duration] of the post-cut timeline.
// Frame analysis is optional; without a sampler the breathing curve is used alone.
func AnalyzeZoom(ctx context.Context, duration float64, opts ZoomOptions, frames FrameSampler, fa FrameAnalyzer, cues TranscriptCues, log zerolog.Logger) ([]timeline.ZoomKeyframe, error) {
	if opts.Mode == ZoomOff || duration <= 0 {
		return nil, nil
	}
	if opts.Step <= 0 {
		opts.Step = 0.5
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.SampleEvery < opts.Step {
		opts.SampleEvery = opts.Step
	}

	maxZoom := MaxZoomFor(opts.Intensity)
	perFrame, ok := zoomSmoothness[opts.Smoothness]
	if !ok {
		perFrame = zoomSmoothness["medium"]
	}
	zoomSmooth := NewZoomSmoother(perFrame * float64(opts.FPS) * opts.Step)
	xSmooth := NewZoomSmoother(0.05)
	ySmooth := NewZoomSmoother(0.05)

	analyse := opts.Mode != ZoomBreathing && frames != nil && fa != nil
	var features FrameFeatures
	lastBucket := -1
	failures := 0

	n := int(math.Floor(duration/opts.Step + 1e-9))
	keyframes := make([]timeline.ZoomKeyframe, 0, n+1)
	for i := 0; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := float64(i) * opts.Step

		if analyse {
			if bucket := int(t / opts.SampleEvery); bucket != lastBucket {
				lastBucket = bucket
				features = FrameFeatures{}
				img, err := frames.SampleFrame(ctx, t)
				if err == nil {
					features, err = fa.Analyze(img)
				}
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					failures++
					log.Debug().Err(err).Float64("t", t).Msg("frame analysis failed")
				}
			}
		}

		z := BreathingZoom(t, opts.Cycle, maxZoom)
		z = nudgeForFrame(z, maxZoom, features)
		z = nudgeForCues(z, maxZoom, t, cues)

		cx, cy := 0.5, 0.5
		if features.HasFocus {
			cx = clamp(features.FocusX, 0.25, 0.75)
			cy = clamp(features.FocusY, 0.25, 0.75)
		}

		keyframes = append(keyframes, timeline.ZoomKeyframe{
			Time:    t,
			Zoom:    math.Max(1.0, zoomSmooth.Next(z)),
			CenterX: xSmooth.Next(cx),
			CenterY: ySmooth.Next(cy),
		})
	}

	if failures > 0 {
		log.Warn().Int("failed_samples", failures).Msg("some frames could not be analysed, breathing zoom used there")
	}
	return keyframes, nil
}

func nudgeForFrame(z, maxZoom float64, f FrameFeatures) float64 {
	switch {
	case f.FaceRatio > 0 && f.FaceRatio < 0.1:
		// small face, push in
		z = math.Min(maxZoom*1.1, z*1.05)
	case f.FaceRatio > 0.3:
		z = math.Max(1.0, z*0.95)
	}
	if f.HasFocus && f.GradientDensity < 0.1 {
		z = math.Min(maxZoom, z*1.02)
	}
	return z
}

func nudgeForCues(z, maxZoom, t float64, cues TranscriptCues) float64 {
	for _, p := range cues.Pauses {
		if math.Abs(t-p) <= 1.0 {
			z = math.Max(1.0, z*0.9)
			break
		}
	}
	for _, s := range cues.SectionChanges {
		if math.Abs(t-s) <= 2.0 {
			z = math.Min(maxZoom, z*1.05)
			break
		}
	}
	return z
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
