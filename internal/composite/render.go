package composite

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/ivlev/reelsmith/internal/effects"
	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/timeline"
	"github.com/ivlev/reelsmith/internal/video"
)

// Result describes a finished render.
type Result struct {
	Output   string
	Duration float64 // seconds, timeline arithmetic not probed
	Inputs   int
	Elapsed  time.Duration
}

type step struct {
	name string
	run  func(ctx context.Context, g *graph, f effects.Frame) error
}

// Render applies the edits in a fixed order and encodes once to output:
//
//  1. silence cuts
//  2. zoom
//  3. overlays, subtitles and topic card
//  4. audio mix
//  5. intro and outro
//
// Every clip opened for the render is closed before Render returns.
func (b *Builder) Render(ctx context.Context, output string, progress video.ProgressFunc, preset string) (*Result, error) {
	if b.rendered {
		return nil, ErrAlreadyRendered
	}
	b.rendered = true
	start := time.Now()

	g := &graph{}
	defer func() {
		if cerr := g.release(); cerr != nil {
			b.log.Warn().Err(cerr).Msg("failed to release clips")
		}
	}()

	src, _, err := g.open(ctx, b.opener, b.source, source.KindVideo)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	info := src.Info()
	frame := b.frameFor(info.Width, info.Height, info.FPS)

	steps := []step{
		{"silence cuts", func(_ context.Context, g *graph, _ effects.Frame) error { return b.applyCuts(g, info.Duration, info.HasAudio) }},
		{"zoom", func(_ context.Context, g *graph, f effects.Frame) error { return b.applyZoom(g, f) }},
		{"overlays", b.applyOverlays},
		{"audio mix", b.applyAudio},
		{"intro and outro", b.applyBookends},
	}
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.beforeStep != nil {
			if err := b.beforeStep(i + 1); err != nil {
				return nil, fmt.Errorf("render step %d (%s): %w", i+1, s.name, err)
			}
		}
		if err := s.run(ctx, g, frame); err != nil {
			return nil, fmt.Errorf("render step %d (%s): %w", i+1, s.name, err)
		}
	}

	job := video.EncodeJob{
		Inputs:        g.inputs,
		FilterComplex: g.script(),
		VideoMap:      "[" + g.video + "]",
		Output:        output,
		VideoCodec:    b.settings.VideoCodec,
		AudioCodec:    b.settings.AudioCodec,
		Preset:        preset,
		Quality:       b.settings.Quality,
		FPS:           frame.FPS,
		Duration:      g.duration,
	}
	if g.audio != "" {
		job.AudioMap = "[" + g.audio + "]"
	}

	b.log.Info().
		Str("output", output).
		Int("inputs", len(job.Inputs)).
		Int("filters", len(g.filters)).
		Float64("duration", g.duration).
		Msg("encoding composite")

	if err := b.encoder.Encode(ctx, job, progress); err != nil {
		return nil, fmt.Errorf("encode %s: %w", output, err)
	}

	return &Result{Output: output, Duration: g.duration, Inputs: len(job.Inputs), Elapsed: time.Since(start)}, nil
}

// frameFor picks the output canvas, falling back to the source geometry.
func (b *Builder) frameFor(w, h int, fps float64) effects.Frame {
	f := effects.Frame{Width: b.settings.Width, Height: b.settings.Height, FPS: b.settings.FPS}
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = w, h
	}
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = 1920, 1080
	}
	// yuv420p needs even dimensions
	f.Width -= f.Width % 2
	f.Height -= f.Height % 2
	if f.FPS <= 0 {
		f.FPS = int(math.Round(fps))
	}
	if f.FPS <= 0 {
		f.FPS = 30
	}
	return f
}

// Step 1: trim the kept spans and join them into the post-cut timeline.
func (b *Builder) applyCuts(g *graph, sourceDuration float64, hasAudio bool) error {
	cuts := b.cuts
	if len(cuts) == 0 {
		cuts = []timeline.SilenceCut{{Start: 0, End: sourceDuration}}
	}
	if err := timeline.ValidateCuts(cuts, sourceDuration); err != nil {
		return err
	}

	var concatIn string
	for _, c := range cuts {
		v := g.label("vc")
		g.add(fmt.Sprintf("[0:v]trim=start=%.3f:end=%.3f,setpts=PTS-STARTPTS[%s]", c.Start, c.End, v))
		concatIn += "[" + v + "]"
		g.video = v
		if hasAudio {
			a := g.label("ac")
			g.add(fmt.Sprintf("[0:a]atrim=start=%.3f:end=%.3f,asetpts=PTS-STARTPTS[%s]", c.Start, c.End, a))
			concatIn += "[" + a + "]"
			g.audio = a
		}
	}

	if len(cuts) > 1 {
		g.video = g.label("vcut")
		if hasAudio {
			g.audio = g.label("acut")
			g.add(fmt.Sprintf("%sconcat=n=%d:v=1:a=1[%s][%s]", concatIn, len(cuts), g.video, g.audio))
		} else {
			g.add(fmt.Sprintf("%sconcat=n=%d:v=1:a=0[%s]", concatIn, len(cuts), g.video))
		}
	}

	g.duration = timeline.KeptDuration(cuts)
	b.log.Debug().Int("spans", len(cuts)).Float64("duration", g.duration).Msg("silence cuts applied")
	return nil
}

// Step 2: zoom on the post-cut stream, or just fit it to the frame.
func (b *Builder) applyZoom(g *graph, f effects.Frame) error {
	if len(b.keyframes) == 0 {
		g.chain(effects.FitEffect{}.Filter(f))
		return nil
	}
	for _, kf := range b.keyframes {
		if kf.Zoom < 1.0 || kf.CenterX < 0 || kf.CenterX > 1 || kf.CenterY < 0 || kf.CenterY > 1 {
			return fmt.Errorf("zoom keyframe at %.2fs out of range: zoom %.3f centre (%.2f, %.2f)", kf.Time, kf.Zoom, kf.CenterX, kf.CenterY)
		}
	}
	g.chain(effects.ZoomEffect{Keyframes: b.keyframes}.Filter(f))
	return nil
}

// Step 3: overlays bottom-up in start order, captions above them, the
// topic card on top.
func (b *Builder) applyOverlays(ctx context.Context, g *graph, f effects.Frame) error {
	for _, o := range b.overlays {
		if o.StartTime >= g.duration {
			b.log.Warn().Float64("start", o.StartTime).Str("media", o.MediaPath).Msg("overlay starts after the end, skipped")
			continue
		}
		if o.End() > g.duration {
			o.Duration = g.duration - o.StartTime
		}

		kind, args := source.KindVideo, []string(nil)
		if o.MediaType == timeline.MediaImage {
			kind, args = source.KindImage, []string{"-loop", "1", "-t", fmt.Sprintf("%.3f", o.Duration)}
		}
		_, idx, err := g.open(ctx, b.opener, o.MediaPath, kind, args...)
		if err != nil {
			return fmt.Errorf("overlay %s: %w", o.MediaPath, err)
		}

		out := g.label("v")
		g.add(effects.OverlayChain(g.video, fmt.Sprintf("%d:v", idx), out, o, f)...)
		g.video = out
	}

	if len(b.subtitles) > 0 {
		clip, err := b.opener.OpenSubtitles(ctx, source.SubtitleRequest{
			Segments: b.subtitles,
			KeyTerms: b.keyTerms,
			Width:    f.Width,
			Height:   f.Height,
			FontSize: b.settings.FontSize,
		})
		if err != nil {
			return fmt.Errorf("subtitles: %w", err)
		}
		g.track(clip)
		g.chain(effects.SubtitleBurn{Path: clip.Path(), FontSize: b.settings.FontSize}.Filter(f))
	}

	if b.card != nil && b.card.Duration > 0 {
		g.chain(b.card.Filter(f))
	}
	return nil
}

// Step 4: speech, music and sound effects into one track.
func (b *Builder) applyAudio(ctx context.Context, g *graph, _ effects.Frame) error {
	var mix []string

	if g.audio != "" {
		speech := g.label("speech")
		g.add(effects.SpeechChain(g.audio, speech, b.settings.SpeechVolume, b.enhance))
		mix = append(mix, speech)
	}

	if b.music != nil {
		_, idx, err := g.open(ctx, b.opener, b.music.Path, source.KindAudio, "-stream_loop", "-1")
		if err != nil {
			return fmt.Errorf("music %s: %w", b.music.Path, err)
		}
		music := g.label("music")
		g.add(effects.MusicChain(fmt.Sprintf("%d:a", idx), music, g.duration, b.music.Volume, b.music.FadeIn, b.music.FadeOut))
		mix = append(mix, music)
	}

	sounds := lo.Filter(b.sounds, func(s SoundEffect, _ int) bool { return s.At >= 0 && s.At < g.duration })
	if len(sounds) > 0 && len(mix) == 0 {
		// cues alone must not set the length of the track
		bed := g.label("bed")
		g.add(effects.SilentAudio(bed, g.duration))
		mix = append(mix, bed)
	}
	for _, s := range sounds {
		_, idx, err := g.open(ctx, b.opener, s.Path, source.KindAudio)
		if err != nil {
			return fmt.Errorf("sound effect %s: %w", s.Path, err)
		}
		cue := g.label("sfx")
		g.add(effects.CueChain(fmt.Sprintf("%d:a", idx), cue, s.At, s.Duration, s.Volume))
		mix = append(mix, cue)
	}

	switch len(mix) {
	case 0:
		g.audio = ""
	case 1:
		g.audio = mix[0]
	default:
		g.audio = g.label("mix")
		g.add(effects.Mix(mix, g.audio))
	}
	return nil
}

// Step 5: concatenate intros, the main content and outros.
func (b *Builder) applyBookends(ctx context.Context, g *graph, f effects.Frame) error {
	if len(b.intros) == 0 && len(b.outros) == 0 {
		return nil
	}

	type part struct{ v, a string }
	bookend := func(path string) (part, float64, error) {
		clip, idx, err := g.open(ctx, b.opener, path, source.KindVideo)
		if err != nil {
			return part{}, 0, err
		}
		p := part{v: g.label("bv"), a: g.label("ba")}
		g.add(effects.NormalizeVideo(fmt.Sprintf("%d:v", idx), p.v, f))
		if clip.Info().HasAudio {
			g.add(effects.NormalizeAudio(fmt.Sprintf("%d:a", idx), p.a))
		} else {
			g.add(effects.SilentAudio(p.a, clip.Info().Duration))
		}
		return p, clip.Info().Duration, nil
	}

	var parts []part
	total := g.duration
	for _, path := range b.intros {
		p, d, err := bookend(path)
		if err != nil {
			return fmt.Errorf("intro %s: %w", path, err)
		}
		parts = append(parts, p)
		total += d
	}

	main := part{v: g.label("mv"), a: g.label("ma")}
	g.add(fmt.Sprintf("[%s]format=yuv420p[%s]", g.video, main.v))
	if g.audio != "" {
		g.add(effects.NormalizeAudio(g.audio, main.a))
	} else {
		g.add(effects.SilentAudio(main.a, g.duration))
	}
	parts = append(parts, main)

	for _, path := range b.outros {
		p, d, err := bookend(path)
		if err != nil {
			return fmt.Errorf("outro %s: %w", path, err)
		}
		parts = append(parts, p)
		total += d
	}

	pairs := lo.Map(parts, func(p part, _ int) [2]string { return [2]string{p.v, p.a} })
	g.video, g.audio = g.label("vout"), g.label("aout")
	g.add(effects.Concat(pairs, g.video, g.audio))
	g.duration = total
	return nil
}
