package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FallbackThreshold is the linear amplitude used when a threshold cannot be parsed.
const FallbackThreshold = 0.035

// Threshold is a silence floor in dBFS, or a request to derive one.
type Threshold struct {
	DB   float64
	Auto bool
}

// DBToLinear converts dBFS to amplitude.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts amplitude to dBFS.
func LinearToDB(v float64) float64 {
	if v <= 0 {
		return -100
	}
	return 20 * math.Log10(v)
}

// ParseThreshold accepts "-30dB", "-30", "0.035", "4%" or "auto". Invalid
// input returns the fallback threshold together with an error.
func ParseThreshold(s string) (Threshold, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	fallback := Threshold{DB: LinearToDB(FallbackThreshold)}

	switch {
	case v == "auto" || v == "smart":
		return Threshold{Auto: true}, nil
	case strings.HasSuffix(v, "db"):
		db, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "db")), 64)
		if err != nil || db > 0 {
			return fallback, fmt.Errorf("invalid silence threshold %q", s)
		}
		return Threshold{DB: db}, nil
	case strings.HasSuffix(v, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil || pct <= 0 || pct > 100 {
			return fallback, fmt.Errorf("invalid silence threshold %q", s)
		}
		return Threshold{DB: LinearToDB(pct / 100)}, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	switch {
	case err != nil:
		return fallback, fmt.Errorf("invalid silence threshold %q", s)
	case f < 0:
		return Threshold{DB: f}, nil
	case f > 0 && f <= 1:
		return Threshold{DB: LinearToDB(f)}, nil
	default:
		return fallback, fmt.Errorf("silence threshold %q out of range", s)
	}
}

// SmartParams tunes the RMS based threshold.
type SmartParams struct {
	Percentile float64 // noise floor percentile
	Factor     float64 // fraction of the speech level treated as silence
	Min        float64
	Max        float64
	Default    float64 // used when there is nothing to measure
}

// DefaultSmartParams returns the empirically tuned constants.
func DefaultSmartParams() SmartParams {
	return SmartParams{Percentile: 10, Factor: 0.3, Min: 0.1, Max: 0.8, Default: 0.07}
}

// FrameRMS computes RMS per window of frame samples, advancing by hop.
// Values are normalised to [0, 1].
func FrameRMS(samples []int16, frame, hop int) []float64 {
	if len(samples) == 0 || frame <= 0 || hop <= 0 {
		return nil
	}
	if len(samples) < frame {
		frame = len(samples)
	}

	var out []float64
	for start := 0; start+frame <= len(samples); start += hop {
		sum := 0.0
		for _, s := range samples[start : start+frame] {
			v := float64(s) / 32768.0
			sum += v * v
		}
		out = append(out, math.Sqrt(sum/float64(frame)))
	}
	return out
}

// SmartThreshold estimates a silence threshold relative to the loudest
// frame: the mean level of frames above the noise-floor percentile,
// scaled by Factor and clamped to [Min, Max].
func SmartThreshold(rms []float64, p SmartParams) float64 {
	peak := peakOf(rms)
	if peak <= 0 {
		return p.Default
	}

	norm := make([]float64, len(rms))
	for i, v := range rms {
		norm[i] = v / peak
	}
	floor := percentile(norm, p.Percentile)

	sum, n := 0.0, 0
	for _, v := range norm {
		if v > floor {
			sum += v
			n++
		}
	}
	if n == 0 {
		return p.Default
	}
	speech := sum / float64(n)
	return math.Max(p.Min, math.Min(p.Max, speech*p.Factor))
}

func peakOf(values []float64) float64 {
	peak := 0.0
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	return peak
}

// percentile with linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
