package effects

import (
	"fmt"
	"strings"
)

// NormalizeVideo fits an intro or outro to the main frame.
func NormalizeVideo(in, out string, f Frame) string {
	return fmt.Sprintf("[%s]%s,format=yuv420p[%s]", in, FitEffect{}.Filter(f), out)
}

// NormalizeAudio brings any audio stream to the concat format.
func NormalizeAudio(in, out string) string {
	return fmt.Sprintf("[%s]aformat=sample_fmts=fltp:sample_rates=48000:channel_layouts=stereo,asetpts=PTS-STARTPTS[%s]", in, out)
}

// SilentAudio fills a clip without sound so concat has a pair per segment.
func SilentAudio(out string, duration float64) string {
	return fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=48000,atrim=0:%s,aformat=sample_fmts=fltp[%s]", seconds(duration), out)
}

// Concat joins video/audio label pairs in order.
func Concat(pairs [][2]string, vOut, aOut string) string {
	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "[%s][%s]", p[0], p[1])
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[%s][%s]", len(pairs), vOut, aOut)
	return b.String()
}
