package effects

import (
	"fmt"
	"strings"
)

// EnhanceChain is the speech clean-up: band-limit to the voice range, then
// normalise loudness for YouTube.
const EnhanceChain = "highpass=f=200,lowpass=f=3000,loudnorm=I=-16:TP=-1.5:LRA=11"

// SpeechChain levels the main speech track.
func SpeechChain(in, out string, volume float64, enhance bool) string {
	chain := fmt.Sprintf("volume=%.3f", volume)
	if enhance {
		chain += "," + EnhanceChain
	}
	return fmt.Sprintf("[%s]%s,aformat=sample_rates=48000:channel_layouts=stereo[%s]", in, chain, out)
}

// MusicChain trims a looped music input to duration with fades at both ends.
func MusicChain(in, out string, duration, volume, fadeIn, fadeOut float64) string {
	fadeIn = min(fadeIn, duration/2)
	fadeOut = min(fadeOut, duration/2)

	parts := []string{
		"atrim=0:" + seconds(duration),
		"asetpts=PTS-STARTPTS",
		fmt.Sprintf("volume=%.3f", volume),
	}
	if fadeIn > 0 {
		parts = append(parts, fmt.Sprintf("afade=t=in:st=0:d=%s", seconds(fadeIn)))
	}
	if fadeOut > 0 {
		parts = append(parts, fmt.Sprintf("afade=t=out:st=%s:d=%s", seconds(duration-fadeOut), seconds(fadeOut)))
	}
	parts = append(parts, "aformat=sample_rates=48000:channel_layouts=stereo")
	return fmt.Sprintf("[%s]%s[%s]", in, strings.Join(parts, ","), out)
}

// CueChain places a short sound at a moment of the post-cut timeline.
func CueChain(in, out string, at, duration, volume float64) string {
	ms := int64(at * 1000)
	return fmt.Sprintf("[%s]atrim=0:%s,asetpts=PTS-STARTPTS,adelay=%d|%d,volume=%.3f,aformat=sample_rates=48000:channel_layouts=stereo[%s]",
		in, seconds(duration), ms, ms, volume, out)
}

// Mix sums streams without level normalisation; the first stream sets the length.
func Mix(ins []string, out string) string {
	var b strings.Builder
	for _, in := range ins {
		b.WriteString("[" + in + "]")
	}
	fmt.Fprintf(&b, "amix=inputs=%d:duration=first:dropout_transition=0:normalize=0[%s]", len(ins), out)
	return b.String()
}
