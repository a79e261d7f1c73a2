package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/composite"
	"github.com/ivlev/reelsmith/internal/config"
	"github.com/ivlev/reelsmith/internal/director"
	"github.com/ivlev/reelsmith/internal/effects"
	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/system"
	"github.com/ivlev/reelsmith/internal/timeline"
	"github.com/ivlev/reelsmith/internal/video"
)

// Deps are the collaborators a pipeline drives.
type Deps struct {
	Audio     analyzer.AudioAnalyzer
	Frames    FrameGrabber
	Faces     analyzer.FaceDetector // optional
	Opener    source.Opener
	Encoder   video.Encoder
	Probe     func(ctx context.Context, path string) (system.MediaInfo, error)
	Producers Producers
	Progress  io.Writer // receives PROGRESS lines, usually stdout
}

// Pipeline processes videos one at a time, start to finish.
type Pipeline struct {
	cfg  config.Config
	deps Deps
	log  zerolog.Logger

	// Remove lists bad takes, in source seconds, cut from every video.
	Remove []timeline.SilenceCut
}

func New(cfg config.Config, deps Deps, log zerolog.Logger) *Pipeline {
	if deps.Probe == nil {
		deps.Probe = system.Probe
	}
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "pipeline").Logger(),
	}
}

// VideoResult is the outcome for one input. Err is set only when no
// output was rendered; degraded stages do not fail a video.
type VideoResult struct {
	Input    string
	Output   string
	PlanPath string
	Duration float64
	Degraded []Stage
	Err      error
	Elapsed  time.Duration
}

// BatchReport collects per-video outcomes.
type BatchReport struct {
	RunID  string
	Videos []VideoResult
}

// Failed returns the videos that produced no output.
func (r *BatchReport) Failed() []VideoResult {
	return lo.Filter(r.Videos, func(v VideoResult, _ int) bool { return v.Err != nil })
}

// Run processes inputs, or every video in the input directory when none
// are given. Inputs are validated before any processing starts. A failed
// render is reported for its video and the batch moves on.
func (p *Pipeline) Run(ctx context.Context, inputs []string) (*BatchReport, error) {
	if len(inputs) == 0 {
		found, err := system.FindVideos(p.cfg.InputDir)
		if err != nil {
			return nil, fmt.Errorf("discover videos in %s: %w", p.cfg.InputDir, err)
		}
		inputs = found
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no videos to process in %s", p.cfg.InputDir)
	}
	if err := ValidateInputs(inputs); err != nil {
		return nil, err
	}
	if err := p.cfg.Dirs.Ensure(); err != nil {
		return nil, err
	}

	report := &BatchReport{RunID: uuid.NewString()}
	log := p.log.With().Str("run", report.RunID).Logger()

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Info().Int("video", i+1).Int("of", len(inputs)).Str("input", in).Msg("processing video")

		res := p.ProcessVideo(ctx, in)
		report.Videos = append(report.Videos, res)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("input", in).Msg("video failed")
			continue
		}
		log.Info().
			Str("output", res.Output).
			Float64("duration", res.Duration).
			Int("degraded", len(res.Degraded)).
			Dur("elapsed", res.Elapsed).
			Msg("video done")
		p.archive(in)
	}

	log.Info().
		Int("videos", len(report.Videos)).
		Int("failed", len(report.Failed())).
		Msg("batch finished")
	return report, nil
}

// ValidateInputs rejects missing or unreadable sources and malformed
// sidecar caption files.
func ValidateInputs(inputs []string) error {
	var errs []error
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", in, err))
			continue
		}
		if st.IsDir() {
			errs = append(errs, fmt.Errorf("input %s: is a directory", in))
			continue
		}
		f, err := os.Open(in)
		if err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", in, err))
			continue
		}
		f.Close()

		sidecar := subtitle.SidecarPath(in)
		if _, err := os.Stat(sidecar); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if _, err := subtitle.ParseFile(sidecar); err != nil {
			errs = append(errs, fmt.Errorf("captions for %s: %w", in, err))
		}
	}
	return errors.Join(errs...)
}

// videoRun is the state of one ProcessVideo call.
type videoRun struct {
	input      string
	info       system.MediaInfo
	planned    map[Stage]bool
	report     *Reporter
	log        zerolog.Logger
	transcript []timeline.SubtitleSegment // original timeline
	degraded   []Stage
}

// ProcessVideo runs every enabled stage for one video and renders it once.
func (p *Pipeline) ProcessVideo(ctx context.Context, input string) VideoResult {
	start := time.Now()
	res := VideoResult{Input: input, Output: p.OutputPath(input)}

	stages := PlannedStages(p.cfg.Stages)
	v := &videoRun{
		input:   input,
		planned: lo.SliceToMap(stages, func(s Stage) (Stage, bool) { return s, true }),
		log:     p.log.With().Str("video", filepath.Base(input)).Logger(),
	}
	v.report = NewReporter(p.deps.Progress, len(stages), v.log)

	if err := p.cfg.Dirs.Ensure(); err != nil {
		res.Err = err
		return res
	}
	info, err := p.deps.Probe(ctx, input)
	if err != nil {
		res.Err = fmt.Errorf("probe %s: %w", input, err)
		return res
	}
	v.info = info

	plan, err := p.plan(ctx, v, res.Output)
	res.Degraded = v.degraded
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	v.report.Next(StageRender, stageMessages[StageRender])
	path := director.PlanPath(p.cfg.Dirs.Temp, input)
	if err := director.WritePlan(plan, path); err != nil {
		v.log.Warn().Err(err).Msg("edit plan not saved")
	} else {
		res.PlanPath = path
	}

	rendered, err := p.RenderPlan(ctx, plan, renderProgress(v.report))
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = &StageError{Stage: StageRender, Err: err}
		return res
	}
	res.Duration = rendered.Duration
	v.report.Complete("Rendering complete! Saved to: " + filepath.Base(res.Output))
	return res
}

// plan runs the analysis and producer stages and records their edits.
func (p *Pipeline) plan(ctx context.Context, v *videoRun, output string) (*director.Plan, error) {
	cfg := p.cfg
	info := v.info
	plan := director.NewPlan(v.input, output)
	plan.Preset = cfg.Encode.Preset

	cuts := runStage(ctx, v, StageSilence, func(ctx context.Context) ([]timeline.SilenceCut, error) {
		if p.deps.Audio == nil {
			return nil, errors.New("no audio analyzer")
		}
		if !info.HasAudio {
			return nil, errors.New("source has no audio track")
		}
		return analyzer.AnalyzeSilence(ctx, p.deps.Audio, v.input, info.Duration, analyzer.SilenceOptions{
			Threshold:  cfg.Silence.Threshold,
			Margin:     cfg.Silence.Margin,
			MinSilence: cfg.Silence.MinSilence,
			Smart:      analyzer.DefaultSmartParams(),
		}, v.log)
	})
	plan.Cuts = cuts.Value
	if len(p.Remove) > 0 {
		plan.Cuts = timeline.SubtractSpans(plan.Cuts, p.Remove, info.Duration)
		if len(plan.Cuts) == 0 {
			return nil, fmt.Errorf("removed spans cover all of %s", v.input)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := info.Duration
	if len(plan.Cuts) > 0 {
		final = timeline.KeptDuration(plan.Cuts)
	}
	postCut := func() []timeline.SubtitleSegment {
		return timeline.AdjustSegments(v.transcript, plan.Cuts)
	}

	enhance := runStage(ctx, v, StageEnhance, func(context.Context) (bool, error) {
		if !info.HasAudio {
			return false, errors.New("source has no audio track")
		}
		return true, nil
	})
	plan.AudioEnhance = enhance.Value

	transcript := runStage(ctx, v, StageTranscription, func(ctx context.Context) ([]timeline.SubtitleSegment, error) {
		if p.deps.Producers.Transcriber == nil {
			return nil, errors.New("no transcriber configured")
		}
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		segs, err := p.deps.Producers.Transcriber.Transcribe(callCtx, v.input)
		if err != nil {
			return nil, err
		}
		if len(segs) == 0 {
			return nil, ErrNoTranscript
		}
		return segs, nil
	})
	v.transcript = transcript.Value

	corrected := runStage(ctx, v, StageCorrection, func(ctx context.Context) ([]timeline.SubtitleSegment, error) {
		if p.deps.Producers.Corrector == nil {
			return nil, errors.New("no corrector configured")
		}
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		fixed, err := p.deps.Producers.Corrector.Correct(callCtx, v.transcript, cfg.Topic)
		if err != nil {
			return nil, err
		}
		if !timeline.SameTiming(v.transcript, fixed) {
			return nil, errors.New("correction changed cue timing")
		}
		return fixed, nil
	})
	if corrected.OK() {
		v.transcript = corrected.Value
	}

	terms := runStage(ctx, v, StageHighlights, func(ctx context.Context) ([]string, error) {
		if p.deps.Producers.KeyTerms == nil {
			return nil, errors.New("no key term source configured")
		}
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		return p.deps.Producers.KeyTerms.KeyTerms(callCtx, v.transcript, cfg.Topic)
	})

	subs := runStage(ctx, v, StageSubtitles, func(context.Context) ([]timeline.SubtitleSegment, error) {
		segs := postCut()
		if len(segs) == 0 {
			return nil, errors.New("no cues left after silence removal")
		}
		return segs, nil
	})
	if subs.OK() {
		plan.Subtitles = subs.Value
		plan.KeyTerms = terms.Value
	}

	zoom := runStage(ctx, v, StageZoom, func(ctx context.Context) ([]timeline.ZoomKeyframe, error) {
		opts := analyzer.DefaultZoomOptions()
		opts.Mode = analyzer.ZoomMode(cfg.Zoom.Mode)
		opts.Intensity = cfg.Zoom.Intensity
		opts.Smoothness = cfg.Zoom.Smoothness
		switch {
		case cfg.Encode.FPS > 0:
			opts.FPS = cfg.Encode.FPS
		case info.FPS > 0:
			opts.FPS = int(math.Round(info.FPS))
		}
		fa, err := analyzer.NewFrameAnalyzer(opts.Mode, p.deps.Faces)
		if err != nil {
			return nil, err
		}
		var frames analyzer.FrameSampler
		if fa != nil && p.deps.Frames != nil && info.HasVideo {
			frames = cutSampler{grab: p.deps.Frames, path: v.input, cuts: plan.Cuts}
		}
		return analyzer.AnalyzeZoom(ctx, final, opts, frames, fa, analyzer.CuesFromTranscript(postCut()), v.log)
	})
	plan.Zoom = zoom.Value

	media := runStage(ctx, v, StageMultimedia, func(ctx context.Context) ([]timeline.MediaOverlay, error) {
		opts := analyzer.MultimediaOptions{
			Topic:         cfg.Topic,
			Counts:        analyzer.SmartCounts(final, cfg.Media.BrollRatio, cfg.Media.ImageRatio),
			Cuts:          plan.Cuts,
			FinalDuration: final,
			MinGap:        cfg.Media.MinGap,
			WorkDir:       cfg.Dirs.Temp,
			Parallel:      cfg.AI.MaxParallel,
			CallTimeout:   cfg.AI.CallTimeout,
		}
		broll, images, err := analyzer.AnalyzeMultimedia(ctx, v.transcript, opts, analyzer.MultimediaProducers{
			Suggester: p.deps.Producers.Suggester,
			Broll:     p.deps.Producers.Broll,
			Images:    p.deps.Producers.Images,
		}, v.log)
		if err != nil {
			return nil, err
		}
		return append(broll, images...), nil
	})
	plan.Overlays = append(plan.Overlays, media.Value...)

	card := runStage(ctx, v, StageTopicCard, func(context.Context) (*effects.TopicCard, error) {
		text := strings.TrimSpace(cfg.Topic)
		if text == "" {
			return nil, errors.New("no topic set")
		}
		if _, ok := effects.CardStyles[cfg.Card.Style]; !ok {
			return nil, fmt.Errorf("unknown card style %q", cfg.Card.Style)
		}
		return &effects.TopicCard{
			Text:     text,
			Style:    cfg.Card.Style,
			Position: cfg.Card.Position,
			Duration: math.Min(cfg.Card.Duration, final),
		}, nil
	})
	plan.TopicCard = card.Value

	music := runStage(ctx, v, StageMusic, func(ctx context.Context) (*composite.Music, error) {
		if p.deps.Producers.Music == nil {
			return nil, errors.New("no music library configured")
		}
		callCtx, cancel := p.callCtx(ctx)
		defer cancel()
		path, err := p.deps.Producers.Music.PickMusic(callCtx, cfg.Topic)
		if err != nil {
			return nil, err
		}
		return &composite.Music{
			Path:    path,
			Volume:  cfg.Audio.MusicVolume,
			FadeIn:  cfg.Audio.FadeIn,
			FadeOut: cfg.Audio.FadeOut,
		}, nil
	})
	plan.Music = music.Value

	sounds := runStage(ctx, v, StageSoundEffects, func(ctx context.Context) ([]composite.SoundEffect, error) {
		if p.deps.Producers.Sounds == nil {
			return nil, errors.New("no sound effect library configured")
		}
		if len(terms.Value) == 0 {
			return nil, errors.New("no key terms to accent")
		}
		cues := soundCues(postCut(), terms.Value)
		var out []composite.SoundEffect
		for _, c := range cues {
			callCtx, cancel := p.callCtx(ctx)
			path, err := p.deps.Producers.Sounds.PickSound(callCtx, c.Term)
			cancel()
			if err != nil {
				v.log.Debug().Err(err).Str("term", c.Term).Msg("no sound for term")
				continue
			}
			out = append(out, composite.SoundEffect{
				Path:     path,
				At:       c.At,
				Duration: cfg.Audio.SoundDuration,
				Volume:   cfg.Audio.SoundVolume,
			})
		}
		if len(out) == 0 && len(cues) > 0 {
			return nil, errors.New("no sound available for any key term")
		}
		return out, nil
	})
	plan.SoundEffects = sounds.Value

	outro := runStage(ctx, v, StageOutro, func(ctx context.Context) (bookend, error) {
		return p.outro(ctx, v, final)
	})
	if outro.OK() {
		plan.Outros = outro.Value.clips
		if c := outro.Value.card; c != nil {
			kept := analyzer.ClearWindow(plan.Overlays, c.StartTime, c.End(), cfg.Media.MinGap)
			if n := len(plan.Overlays) - len(kept); n > 0 {
				v.log.Debug().Int("dropped", n).Msg("overlays dropped for the end card")
			}
			plan.Overlays = append(kept, *c)
		}
	}

	if cfg.Audio.IntroPath != "" {
		plan.Intros = []string{cfg.Audio.IntroPath}
	}
	plan.Duration = final

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := plan.Validate(info.Duration); err != nil {
		return nil, fmt.Errorf("edit plan: %w", err)
	}
	return plan, nil
}

// bookend is what the outro stage contributes.
type bookend struct {
	clips []string
	card  *timeline.MediaOverlay
}

// outro collects the outro clip and the end card. Either one is enough.
func (p *Pipeline) outro(ctx context.Context, v *videoRun, final float64) (bookend, error) {
	var out bookend
	var errs []error

	if path := p.cfg.Audio.OutroPath; path != "" {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("outro clip: %w", err))
		} else {
			out.clips = []string{path}
		}
	}

	if p.deps.Producers.EndCard != nil {
		callCtx, cancel := p.callCtx(ctx)
		img, err := p.deps.Producers.EndCard.EndCard(callCtx, p.cfg.Dirs.Temp)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("end card: %w", err))
		} else {
			o := p.endCardOverlay(img, final, v.info)
			out.card = &o
		}
	}

	if len(out.clips) == 0 && out.card == nil {
		if len(errs) == 0 {
			return out, errors.New("no outro clip or end card configured")
		}
		return out, errors.Join(errs...)
	}
	for _, err := range errs {
		v.log.Warn().Err(err).Msg("outro partly unavailable")
	}
	return out, nil
}

// endCardOverlay pins the card to the bottom-right corner over the last
// seconds of the main content.
func (p *Pipeline) endCardOverlay(path string, final float64, info system.MediaInfo) timeline.MediaOverlay {
	w, h := p.cfg.Encode.Width, p.cfg.Encode.Height
	if w <= 0 || h <= 0 {
		w, h = info.Width, info.Height
	}
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	side := min(w, h) / 4
	margin := side / 6

	dur := math.Min(p.cfg.Media.EndCardDuration, final)
	if dur <= 0 {
		dur = math.Min(5, final)
	}
	return timeline.MediaOverlay{
		StartTime:  final - dur,
		Duration:   dur,
		MediaPath:  path,
		MediaType:  timeline.MediaImage,
		Transition: timeline.TransitionFade,
		Position:   &timeline.Point{X: w - side - margin, Y: h - side - margin},
		Size:       &timeline.Size{W: side, H: side},
		Kind:       timeline.KindEndCard,
	}
}

// RenderPlan renders a plan in one encode.
func (p *Pipeline) RenderPlan(ctx context.Context, plan *director.Plan, progress video.ProgressFunc) (*composite.Result, error) {
	if p.deps.Opener == nil || p.deps.Encoder == nil {
		return nil, errors.New("pipeline has no opener or encoder")
	}
	b := composite.NewBuilder(plan.Source, p.deps.Opener, p.deps.Encoder, p.Settings(), p.log)
	plan.Apply(b)

	preset := plan.Preset
	if preset == "" {
		preset = p.cfg.Encode.Preset
	}
	return b.Render(ctx, plan.Output, progress, preset)
}

// Settings maps the encode config onto builder settings.
func (p *Pipeline) Settings() composite.Settings {
	s := composite.DefaultSettings()
	s.Width = p.cfg.Encode.Width
	s.Height = p.cfg.Encode.Height
	s.FPS = p.cfg.Encode.FPS
	s.Quality = p.cfg.Encode.Quality
	s.SpeechVolume = p.cfg.Audio.SpeechVolume
	if p.cfg.Encode.Encoder != "" {
		s.VideoCodec = p.cfg.Encode.Encoder
	}
	if p.cfg.FontSize > 0 {
		s.FontSize = p.cfg.FontSize
	}
	return s
}

// OutputPath is where the edited version of input is written.
func (p *Pipeline) OutputPath(input string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(p.cfg.Dirs.Output, stem+"_edited.mp4")
}

// archive moves a processed source out of the input directory.
func (p *Pipeline) archive(input string) {
	if p.cfg.KeepOriginals || p.cfg.Dirs.Originals == "" {
		return
	}
	dst := filepath.Join(p.cfg.Dirs.Originals, filepath.Base(input))
	if err := os.Rename(input, dst); err != nil {
		p.log.Warn().Err(err).Str("input", input).Msg("original not moved")
		return
	}
	p.log.Debug().Str("to", dst).Msg("original archived")
}

func (p *Pipeline) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := p.cfg.AI.CallTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// renderProgress forwards encode progress in ten percent steps.
func renderProgress(r *Reporter) video.ProgressFunc {
	last := -1
	return func(pr video.Progress) {
		decile := int(pr.Percent) / 10
		if pr.Done || decile <= last {
			return
		}
		last = decile
		r.Update(StageRender, fmt.Sprintf("Encoding %d%%", decile*10))
	}
}
