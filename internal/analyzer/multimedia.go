package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// Suggestion is a timed request for supporting media, in original-timeline seconds.
type Suggestion struct {
	Start    float64
	Duration float64
	Keyword  string
	Prompt   string
	Kind     string // timeline.KindBroll or timeline.KindImage
}

// MediaCounts is how many overlays of each kind to ask for.
type MediaCounts struct {
	Broll  int
	Images int
}

// Suggester maps a transcript to timed media requests.
type Suggester interface {
	Suggest(ctx context.Context, transcript []timeline.SubtitleSegment, topic string, counts MediaCounts) ([]Suggestion, error)
}

// BrollFetcher stores a clip for a suggestion in dir and returns its path.
type BrollFetcher interface {
	FetchBroll(ctx context.Context, s Suggestion, dir string) (string, error)
}

// ImageProducer stores an image for a suggestion in dir and returns its path.
type ImageProducer interface {
	GenerateImage(ctx context.Context, s Suggestion, topic, dir string) (string, error)
}

// MultimediaProducers groups the external suppliers. Nil members disable their kind.
type MultimediaProducers struct {
	Suggester Suggester
	Broll     BrollFetcher
	Images    ImageProducer
}

// MultimediaOptions tunes overlay planning.
type MultimediaOptions struct {
	Topic         string
	Counts        MediaCounts
	Cuts          []timeline.SilenceCut
	FinalDuration float64 // post-cut duration
	MinGap        float64
	WorkDir       string
	Parallel      int
	CallTimeout   time.Duration
	Position      *timeline.Point
	Size          *timeline.Size
}

// SmartCounts scales overlay counts with content length: ratio items per 30s,
// at least one of each past 10s, capped at 15 B-roll and 20 images.
func SmartCounts(duration, brollRatio, imageRatio float64) MediaCounts {
	segments := duration / 30.0
	c := MediaCounts{
		Broll:  max(0, int(math.RoundToEven(segments*brollRatio))),
		Images: max(0, int(math.RoundToEven(segments*imageRatio))),
	}
	if duration > 10 {
		c.Broll = max(1, c.Broll)
		c.Images = max(1, c.Images)
	}
	c.Broll = min(c.Broll, 15)
	c.Images = min(c.Images, 20)
	return c
}

// SmartBrollSettings returns clip count and clip length for a video length.
func SmartBrollSettings(duration float64) (int, float64) {
	switch {
	case duration <= 30:
		return 2, 2.0
	case duration <= 60:
		return 3, 3.0
	case duration <= 180:
		return 4, 4.0
	case duration <= 300:
		return 5, 4.5
	case duration <= 600:
		return 6, 5.0
	}
	count := min(int(duration/60), 10)
	return count, math.Min(duration/float64(count)*0.1, 6.0)
}

// AnalyzeMultimedia asks for suggestions, moves them to post-cut time,
// resolves overlaps and fetches media for the survivors. Items whose media
// cannot be produced are dropped.
func AnalyzeMultimedia(ctx context.Context, transcript []timeline.SubtitleSegment, opts MultimediaOptions, p MultimediaProducers, log zerolog.Logger) ([]timeline.MediaOverlay, []timeline.MediaOverlay, error) {
	if p.Suggester == nil {
		return nil, nil, fmt.Errorf("no suggestion source configured")
	}
	if opts.MinGap <= 0 {
		opts.MinGap = DefaultMinGap
	}
	if p.Broll == nil {
		opts.Counts.Broll = 0
	}
	if p.Images == nil {
		opts.Counts.Images = 0
	}
	if opts.Counts.Broll == 0 && opts.Counts.Images == 0 {
		return nil, nil, nil
	}

	suggestCtx, cancel := withTimeout(ctx, opts.CallTimeout)
	suggestions, err := p.Suggester.Suggest(suggestCtx, transcript, opts.Topic, opts.Counts)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("suggest media: %w", err)
	}

	var broll, images []timeline.MediaOverlay
	for _, s := range suggestions {
		o := timeline.MediaOverlay{
			StartTime:  timeline.AdjustTimestamp(s.Start, opts.Cuts),
			Duration:   s.Duration,
			Transition: timeline.TransitionFade,
			Position:   opts.Position,
			Size:       opts.Size,
			Keyword:    s.Keyword,
			Prompt:     s.Prompt,
			Kind:       s.Kind,
		}
		switch {
		case s.Kind == timeline.KindBroll && len(broll) < opts.Counts.Broll:
			o.MediaType = timeline.MediaVideo
			broll = append(broll, o)
		case s.Kind == timeline.KindImage && len(images) < opts.Counts.Images:
			o.MediaType = timeline.MediaImage
			images = append(images, o)
		}
	}
	broll, images = AvoidOverlaps(broll, images, opts.FinalDuration, opts.MinGap)

	// the resolved order is fixed here, fetches fill slots by index
	planned := append(append([]timeline.MediaOverlay(nil), broll...), images...)

	paths := make([]string, len(planned))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, o := range planned {
		g.Go(func() error {
			callCtx, cancel := withTimeout(gctx, opts.CallTimeout)
			defer cancel()

			req := Suggestion{Start: o.StartTime, Duration: o.Duration, Keyword: o.Keyword, Prompt: o.Prompt, Kind: o.Kind}
			var path string
			var err error
			if o.Kind == timeline.KindBroll {
				path, err = p.Broll.FetchBroll(callCtx, req, opts.WorkDir)
			} else {
				path, err = p.Images.GenerateImage(callCtx, req, opts.Topic, opts.WorkDir)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("kind", o.Kind).Str("keyword", o.Keyword).Msg("media unavailable, overlay dropped")
				return nil
			}
			mu.Lock()
			paths[i] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var outBroll, outImages []timeline.MediaOverlay
	for i, o := range planned {
		if paths[i] == "" {
			continue
		}
		o.MediaPath = paths[i]
		if o.Kind == timeline.KindBroll {
			outBroll = append(outBroll, o)
		} else {
			outImages = append(outImages, o)
		}
	}

	log.Info().Int("suggested", len(suggestions)).Int("broll", len(outBroll)).Int("images", len(outImages)).Msg("multimedia placements ready")
	return outBroll, outImages, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
