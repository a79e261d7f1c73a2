package effects

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// DefaultFade is the alpha fade applied to each end of an overlay, seconds.
const DefaultFade = 0.5

// OverlayChain returns the statements that prepare media stream mediaIn and
// composite it over base between StartTime and End. Output lands on out.
func OverlayChain(base, mediaIn, out string, o timeline.MediaOverlay, f Frame) []string {
	prep := out + "src"

	var chain []string
	if o.MediaType == timeline.MediaVideo {
		chain = append(chain, "trim=duration="+seconds(o.Duration), "setpts=PTS-STARTPTS")
	}
	chain = append(chain, overlayScale(o, f), fmt.Sprintf("fps=%d", f.FPS), "format=rgba")

	if o.Transition != timeline.TransitionNone {
		fade := math.Min(DefaultFade, o.Duration/2)
		chain = append(chain,
			fmt.Sprintf("fade=t=in:st=0:d=%s:alpha=1", seconds(fade)),
			fmt.Sprintf("fade=t=out:st=%s:d=%s:alpha=1", seconds(o.Duration-fade), seconds(fade)),
		)
	}
	chain = append(chain, fmt.Sprintf("setpts=PTS-STARTPTS+%s/TB", seconds(o.StartTime)))

	x, y := overlayPosition(o)
	return []string{
		fmt.Sprintf("[%s]%s[%s]", mediaIn, strings.Join(chain, ","), prep),
		fmt.Sprintf("[%s][%s]overlay=x=%s:y=%s:enable='between(t,%s,%s)':eof_action=pass[%s]",
			base, prep, x, y, seconds(o.StartTime), seconds(o.End()), out),
	}
}

func overlayScale(o timeline.MediaOverlay, f Frame) string {
	switch {
	case o.Size != nil:
		return fmt.Sprintf("scale=%d:%d", o.Size.W, o.Size.H)
	case o.MediaType == timeline.MediaVideo:
		// B-roll covers the frame
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", f.Width, f.Height, f.Width, f.Height)
	default:
		w, h := int(float64(f.Width)*0.8), int(float64(f.Height)*0.8)
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", w, h)
	}
}

func overlayPosition(o timeline.MediaOverlay) (string, string) {
	if o.Position != nil {
		return fmt.Sprint(o.Position.X), fmt.Sprint(o.Position.Y)
	}
	return "(main_w-overlay_w)/2", "(main_h-overlay_h)/2"
}
