package renderer

import (
	"math"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// CameraState is the interpolated zoom and centre at one moment
type CameraState struct {
	Zoom    float64
	CenterX float64 // fraction of frame width
	CenterY float64 // fraction of frame height
}

// InterpolateZoom calculates the camera state at time t by linear interpolation
// between keyframes. Before the first keyframe the first one holds, after the
// last keyframe the last one holds.
func InterpolateZoom(keyframes []timeline.ZoomKeyframe, t float64) CameraState {
	if len(keyframes) == 0 {
		return CameraState{Zoom: 1.0, CenterX: 0.5, CenterY: 0.5}
	}

	if t <= keyframes[0].Time {
		return stateOf(keyframes[0])
	}
	last := keyframes[len(keyframes)-1]
	if t >= last.Time {
		return stateOf(last)
	}

	// Find surrounding keyframes
	i := 0
	for i < len(keyframes)-1 && t >= keyframes[i+1].Time {
		i++
	}
	prev, next := keyframes[i], keyframes[i+1]

	span := next.Time - prev.Time
	if span <= 0 {
		return stateOf(next)
	}
	f := (t - prev.Time) / span

	return CameraState{
		Zoom:    lerp(prev.Zoom, next.Zoom, f),
		CenterX: lerp(prev.CenterX, next.CenterX, f),
		CenterY: lerp(prev.CenterY, next.CenterY, f),
	}
}

// SimplifyKeyframes drops keyframes that lie on the line between their
// neighbours (within tol), keeping the first and last.
func SimplifyKeyframes(keyframes []timeline.ZoomKeyframe, tol float64) []timeline.ZoomKeyframe {
	if len(keyframes) <= 2 {
		return keyframes
	}
	out := []timeline.ZoomKeyframe{keyframes[0]}
	for i := 1; i < len(keyframes)-1; i++ {
		prev := out[len(out)-1]
		next := keyframes[i+1]
		probe := InterpolateZoom([]timeline.ZoomKeyframe{prev, next}, keyframes[i].Time)
		cur := stateOf(keyframes[i])
		if math.Abs(probe.Zoom-cur.Zoom) > tol ||
			math.Abs(probe.CenterX-cur.CenterX) > tol ||
			math.Abs(probe.CenterY-cur.CenterY) > tol {
			out = append(out, keyframes[i])
		}
	}
	return append(out, keyframes[len(keyframes)-1])
}

func stateOf(kf timeline.ZoomKeyframe) CameraState {
	return CameraState{Zoom: kf.Zoom, CenterX: kf.CenterX, CenterY: kf.CenterY}
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
