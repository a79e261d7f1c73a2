package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/timeline"
	"github.com/ivlev/reelsmith/internal/video"
)

// ErrNoSpeech is returned when the whole source is below the silence floor.
var ErrNoSpeech = errors.New("no audible content above the silence threshold")

// AudioAnalyzer is the part of the ffmpeg executor silence analysis needs.
type AudioAnalyzer interface {
	DetectSilence(ctx context.Context, path string, noiseDB, minDuration float64) ([]video.SilenceSpan, error)
	ExtractPCM(ctx context.Context, path string, sampleRate int) ([]int16, error)
}

// SilenceOptions tunes silence analysis.
type SilenceOptions struct {
	Threshold  string  // "-30dB", "0.035", "auto"
	Margin     float64 // padding kept around speech, seconds
	MinSilence float64 // shortest silence worth detecting, seconds
	SampleRate int
	Smart      SmartParams
}

// AnalyzeSilence detects silent spans and returns the kept intervals.
func AnalyzeSilence(ctx context.Context, aa AudioAnalyzer, path string, duration float64, opts SilenceOptions, log zerolog.Logger) ([]timeline.SilenceCut, error) {
	th, err := ParseThreshold(opts.Threshold)
	if err != nil {
		log.Warn().Err(err).Float64("fallback", FallbackThreshold).Msg("using fallback silence threshold")
	}

	noiseDB := th.DB
	if th.Auto {
		rate := opts.SampleRate
		if rate <= 0 {
			rate = 16000
		}
		samples, err := aa.ExtractPCM(ctx, path, rate)
		if err != nil {
			return nil, fmt.Errorf("smart threshold: %w", err)
		}
		rms := FrameRMS(samples, 2048, 512)
		rel := SmartThreshold(rms, opts.Smart)
		if peak := peakOf(rms); peak > 0 {
			noiseDB = LinearToDB(rel * peak)
		} else {
			noiseDB = LinearToDB(opts.Smart.Default)
		}
		log.Info().Float64("relative", rel).Float64("noise_db", noiseDB).Msg("smart silence threshold")
	}

	spans, err := aa.DetectSilence(ctx, path, noiseDB, opts.MinSilence)
	if err != nil {
		return nil, err
	}

	cuts := KeepIntervals(spans, duration, opts.Margin)
	if len(cuts) == 0 {
		return nil, ErrNoSpeech
	}
	if err := timeline.ValidateCuts(cuts, duration); err != nil {
		return nil, err
	}

	log.Info().
		Int("silences", len(spans)).
		Int("kept_spans", len(cuts)).
		Float64("kept_duration", timeline.KeptDuration(cuts)).
		Float64("source_duration", duration).
		Msg("silence analysis done")
	return cuts, nil
}

// KeepIntervals returns the complement of silences inside [0, duration],
// each kept span padded by margin on both sides, clipped and merged.
func KeepIntervals(silences []video.SilenceSpan, duration, margin float64) []timeline.SilenceCut {
	spans := append([]video.SilenceSpan(nil), silences...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var kept []timeline.SilenceCut
	cursor := 0.0
	for _, s := range spans {
		start := math.Max(0, s.Start)
		end := math.Min(duration, s.End)
		if end <= start {
			continue
		}
		if start > cursor {
			kept = append(kept, timeline.SilenceCut{Start: cursor, End: start})
		}
		cursor = math.Max(cursor, end)
	}
	if cursor < duration {
		kept = append(kept, timeline.SilenceCut{Start: cursor, End: duration})
	}

	var out []timeline.SilenceCut
	for _, k := range kept {
		k.Start = math.Max(0, k.Start-margin)
		k.End = math.Min(duration, k.End+margin)
		if n := len(out); n > 0 && k.Start <= out[n-1].End {
			out[n-1].End = math.Max(out[n-1].End, k.End)
			continue
		}
		if k.End-k.Start > 0.001 {
			out = append(out, k)
		}
	}
	return out
}
