package engine

import (
	"context"
	"image"
	"strings"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// Transcriber turns speech in a video into cues on the original timeline.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string) ([]timeline.SubtitleSegment, error)
}

// Corrector fixes cue text. Cue timing must come back unchanged.
type Corrector interface {
	Correct(ctx context.Context, segments []timeline.SubtitleSegment, topic string) ([]timeline.SubtitleSegment, error)
}

// KeyTermer picks the terms worth highlighting.
type KeyTermer interface {
	KeyTerms(ctx context.Context, segments []timeline.SubtitleSegment, topic string) ([]string, error)
}

// MusicPicker returns a background track for the topic.
type MusicPicker interface {
	PickMusic(ctx context.Context, topic string) (string, error)
}

// SoundPicker returns a short sound for a highlighted term.
type SoundPicker interface {
	PickSound(ctx context.Context, term string) (string, error)
}

// EndCardMaker renders an end card image into dir.
type EndCardMaker interface {
	EndCard(ctx context.Context, dir string) (string, error)
}

// Producers are the external suppliers of a run. A nil member fails its
// stage, which then degrades like any other stage failure.
type Producers struct {
	Transcriber Transcriber
	Corrector   Corrector
	KeyTerms    KeyTermer
	Suggester   analyzer.Suggester
	Broll       analyzer.BrollFetcher
	Images      analyzer.ImageProducer
	Music       MusicPicker
	Sounds      SoundPicker
	EndCard     EndCardMaker
}

// FrameGrabber decodes one frame of a video file.
type FrameGrabber interface {
	GrabFrame(ctx context.Context, path string, at float64) (image.Image, error)
}

// cutSampler reads frames at post-cut times from the uncut source.
type cutSampler struct {
	grab FrameGrabber
	path string
	cuts []timeline.SilenceCut
}

func (s cutSampler) SampleFrame(ctx context.Context, t float64) (image.Image, error) {
	return s.grab.GrabFrame(ctx, s.path, timeline.ToSource(t, s.cuts))
}

// soundCue is a key term heard at a point of the timeline.
type soundCue struct {
	At   float64
	Term string
}

// soundCues places one cue per segment that mentions a key term, at the
// estimated time the term is spoken.
func soundCues(segments []timeline.SubtitleSegment, terms []string) []soundCue {
	var cues []soundCue
	for _, seg := range segments {
		text := strings.ToLower(seg.Text)
		if text == "" {
			continue
		}
		for _, term := range terms {
			t := strings.ToLower(strings.TrimSpace(term))
			if t == "" {
				continue
			}
			idx := strings.Index(text, t)
			if idx < 0 {
				continue
			}
			ratio := float64(idx) / float64(len(text))
			cues = append(cues, soundCue{
				At:   seg.Start + (seg.End-seg.Start)*ratio,
				Term: term,
			})
			break
		}
	}
	return cues
}
