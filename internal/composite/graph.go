package composite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/video"
)

// graph is the filtergraph under construction plus every clip opened for it.
type graph struct {
	inputs  []video.Input
	clips   []source.Clip
	filters []string

	video    string // current video label
	audio    string // current audio label, empty when silent
	duration float64
	labels   int
}

// open opens a clip and tracks it for release. Clips that are not ffmpeg
// inputs (caption files) get index -1.
func (g *graph) open(ctx context.Context, o source.Opener, ref string, kind source.MediaKind, args ...string) (source.Clip, int, error) {
	clip, err := o.Open(ctx, ref, kind)
	if err != nil {
		return nil, -1, err
	}
	g.clips = append(g.clips, clip)
	return clip, g.addInput(clip.Path(), args...), nil
}

func (g *graph) track(clip source.Clip) {
	g.clips = append(g.clips, clip)
}

func (g *graph) addInput(path string, args ...string) int {
	g.inputs = append(g.inputs, video.Input{Path: path, Args: args})
	return len(g.inputs) - 1
}

func (g *graph) label(prefix string) string {
	g.labels++
	return fmt.Sprintf("%s%d", prefix, g.labels)
}

func (g *graph) add(stmts ...string) {
	g.filters = append(g.filters, stmts...)
}

// chain applies a single-input video filter to the current video stream.
func (g *graph) chain(filter string) {
	out := g.label("v")
	g.add(fmt.Sprintf("[%s]%s[%s]", g.video, filter, out))
	g.video = out
}

func (g *graph) script() string {
	return strings.Join(g.filters, ";\n")
}

// release closes every tracked clip, newest first, and joins the failures.
func (g *graph) release() error {
	var errs []error
	for i := len(g.clips) - 1; i >= 0; i-- {
		if err := g.clips[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", g.clips[i].Path(), err))
		}
	}
	g.clips = nil
	return errors.Join(errs...)
}
