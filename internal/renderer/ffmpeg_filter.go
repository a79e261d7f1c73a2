package renderer

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// ZoomPanFilter creates an FFmpeg zoompan filter that follows the keyframes
// frame by frame on a moving video (d=1 keeps one output frame per input frame).
func ZoomPanFilter(keyframes []timeline.ZoomKeyframe, fps, width, height int) string {
	if len(keyframes) == 0 {
		return ""
	}

	frames := make([]int, len(keyframes))
	zooms := make([]float64, len(keyframes))
	cxs := make([]float64, len(keyframes))
	cys := make([]float64, len(keyframes))
	for i, kf := range keyframes {
		frames[i] = int(math.Round(kf.Time * float64(fps)))
		zooms[i] = math.Max(1.0, kf.Zoom)
		cxs[i] = clamp01(kf.CenterX)
		cys[i] = clamp01(kf.CenterY)
	}

	zoomExpr := buildPiecewise(frames, zooms)
	xExpr := fmt.Sprintf("(iw-iw/zoom)*(%s)", buildPiecewise(frames, cxs))
	yExpr := fmt.Sprintf("(ih-ih/zoom)*(%s)", buildPiecewise(frames, cys))

	return fmt.Sprintf("zoompan=z='%s':x='%s':y='%s':d=1:s=%dx%d:fps=%d",
		zoomExpr, xExpr, yExpr, width, height, fps)
}

// buildPiecewise creates a flat sum of gated segment terms interpolating
// values linearly between frame numbers and holding them outside the range.
// Exactly one gate is open for any frame, and nesting stays constant however
// many keyframes there are (ffmpeg rejects expressions nested 100 deep).
func buildPiecewise(frames []int, values []float64) string {
	if len(values) == 1 {
		return fmt.Sprintf("%.6f", values[0])
	}

	last := len(values) - 1
	terms := make([]string, 0, len(values)+1)
	terms = append(terms, fmt.Sprintf("lt(on,%d)*%.6f", frames[0], values[0]))

	for i := 0; i < last; i++ {
		startFrame, endFrame := frames[i], frames[i+1]
		if endFrame <= startFrame {
			continue
		}
		delta := values[i+1] - values[i]
		if delta == 0 {
			terms = append(terms, fmt.Sprintf("gte(on,%d)*lt(on,%d)*%.6f", startFrame, endFrame, values[i]))
			continue
		}
		// v0+(on-f0)/(f1-f0)*(v1-v0)
		terms = append(terms, fmt.Sprintf("gte(on,%d)*lt(on,%d)*(%.6f+(on-%d)/%d*(%.6f))",
			startFrame, endFrame, values[i], startFrame, endFrame-startFrame, delta))
	}

	terms = append(terms, fmt.Sprintf("gte(on,%d)*%.6f", frames[last], values[last]))
	return strings.Join(terms, "+")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
