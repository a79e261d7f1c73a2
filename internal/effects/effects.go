package effects

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ivlev/reelsmith/internal/renderer"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// Frame is the output canvas every fragment is built for.
type Frame struct {
	Width, Height int
	FPS           int
}

func (f Frame) Portrait() bool {
	return f.Height > f.Width
}

// Effect renders a single-input video filter chain for a frame.
type Effect interface {
	Filter(f Frame) string
}

// keyframes closer than this to the line through their neighbours are dropped
const zoomTolerance = 0.001

// ZoomEffect drives the camera from keyframes on the post-cut timeline.
type ZoomEffect struct {
	Keyframes []timeline.ZoomKeyframe
}

// Filter upscales 2x before zoompan so sub-pixel pans stay smooth.
func (e ZoomEffect) Filter(f Frame) string {
	aspectFilter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		f.Width*2, f.Height*2, f.Width*2, f.Height*2,
	)

	keyframes := renderer.SimplifyKeyframes(e.Keyframes, zoomTolerance)
	zoomFilter := renderer.ZoomPanFilter(keyframes, f.FPS, f.Width, f.Height)
	if zoomFilter == "" {
		return fmt.Sprintf("%s,scale=%d:%d,setsar=1", aspectFilter, f.Width, f.Height)
	}
	return fmt.Sprintf("fps=%d,%s,%s,setsar=1", f.FPS, aspectFilter, zoomFilter)
}

// FitEffect letterboxes any input into the frame.
type FitEffect struct{}

func (FitEffect) Filter(f Frame) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		f.Width, f.Height, f.Width, f.Height, f.FPS,
	)
}

// Два уровня экранирования: значение опции, затем сам граф фильтров.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// EscapePath makes a file path safe as a filter option inside filter_complex.
func EscapePath(p string) string {
	return graphEscaper.Replace(optionEscaper.Replace(filepath.ToSlash(p)))
}

// EscapeText prepares drawtext text for use inside single quotes.
func EscapeText(s string) string {
	r := strings.NewReplacer(`\`, "", `'`, "’", `:`, `\:`, `%`, `\\%`, "\n", " ")
	return r.Replace(s)
}

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
