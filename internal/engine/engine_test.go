package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/config"
	"github.com/ivlev/reelsmith/internal/director"
	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/subtitle"
	"github.com/ivlev/reelsmith/internal/system"
	"github.com/ivlev/reelsmith/internal/timeline"
	"github.com/ivlev/reelsmith/internal/video"
)

type fakeClip struct {
	path  string
	kind  source.MediaKind
	info  system.MediaInfo
	owner *fakeOpener
}

func (c *fakeClip) Path() string           { return c.path }
func (c *fakeClip) Kind() source.MediaKind { return c.kind }
func (c *fakeClip) Info() system.MediaInfo { return c.info }
func (c *fakeClip) Close() error {
	c.owner.closed++
	return nil
}

// fakeOpener knows the probed sources and treats anything else as a short asset.
type fakeOpener struct {
	sources map[string]system.MediaInfo
	opened  int
	closed  int
}

func (o *fakeOpener) Open(_ context.Context, ref string, kind source.MediaKind) (source.Clip, error) {
	info, ok := o.sources[ref]
	if !ok {
		switch kind {
		case source.KindAudio:
			info = system.MediaInfo{Duration: 30, HasAudio: true}
		case source.KindImage:
			info = system.MediaInfo{Width: 400, Height: 400, HasVideo: true}
		default:
			info = system.MediaInfo{Duration: 4, Width: 1280, Height: 720, HasVideo: true}
		}
	}
	o.opened++
	return &fakeClip{path: ref, kind: kind, info: info, owner: o}, nil
}

func (o *fakeOpener) OpenSubtitles(context.Context, source.SubtitleRequest) (source.Clip, error) {
	o.opened++
	return &fakeClip{path: "/tmp/captions.ass", kind: source.KindSubtitle, owner: o}, nil
}

type fakeEncoder struct {
	jobs   []video.EncodeJob
	failOn string
}

func (e *fakeEncoder) Encode(_ context.Context, job video.EncodeJob, progress video.ProgressFunc) error {
	e.jobs = append(e.jobs, job)
	if e.failOn != "" && strings.Contains(job.Output, e.failOn) {
		return errors.New("encoder crashed")
	}
	if progress != nil {
		progress(video.Progress{Percent: 50})
		progress(video.Progress{Percent: 100, Done: true})
	}
	return nil
}

func (e *fakeEncoder) inputs() []string {
	var paths []string
	for _, j := range e.jobs {
		for _, in := range j.Inputs {
			paths = append(paths, in.Path)
		}
	}
	return paths
}

// fakeAudio reports silence at [20, 30) of every source.
type fakeAudio struct{}

func (fakeAudio) DetectSilence(context.Context, string, float64, float64) ([]video.SilenceSpan, error) {
	return []video.SilenceSpan{{Start: 20, End: 30}}, nil
}

func (fakeAudio) ExtractPCM(context.Context, string, int) ([]int16, error) {
	return nil, errors.New("not used")
}

type fakeTranscriber struct {
	segs []timeline.SubtitleSegment
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, string) ([]timeline.SubtitleSegment, error) {
	return f.segs, f.err
}

type fakeCorrector struct {
	calls int
	shift float64
}

func (f *fakeCorrector) Correct(_ context.Context, segs []timeline.SubtitleSegment, _ string) ([]timeline.SubtitleSegment, error) {
	f.calls++
	out := make([]timeline.SubtitleSegment, len(segs))
	for i, s := range segs {
		s.Text = strings.ReplaceAll(s.Text, "mitral vlave", "mitral valve")
		s.Start += f.shift
		out[i] = s
	}
	return out, nil
}

type fixedTerms []string

func (f fixedTerms) KeyTerms(context.Context, []timeline.SubtitleSegment, string) ([]string, error) {
	return f, nil
}

type fakeMusic struct{ err error }

func (f fakeMusic) PickMusic(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "calm.mp3", nil
}

type fakeSounds struct{}

func (fakeSounds) PickSound(context.Context, string) (string, error) { return "ding.wav", nil }

type fakeSuggester struct{}

func (fakeSuggester) Suggest(context.Context, []timeline.SubtitleSegment, string, analyzer.MediaCounts) ([]analyzer.Suggestion, error) {
	return []analyzer.Suggestion{{Start: 45, Duration: 4, Keyword: "heart", Kind: timeline.KindImage}}, nil
}

type fakeImages struct{}

func (fakeImages) GenerateImage(_ context.Context, s analyzer.Suggestion, _, _ string) (string, error) {
	return s.Keyword + ".png", nil
}

var lecture = []timeline.SubtitleSegment{
	{Index: 1, Start: 2, End: 8, Text: "Today we look at the mitral vlave"},
	{Index: 2, Start: 10, End: 18, Text: "The heart has four chambers"},
	{Index: 3, Start: 32, End: 40, Text: "So what happens in stenosis"},
	{Index: 4, Start: 44, End: 50, Text: "Blood flow slows down"},
}

type fixture struct {
	cfg     config.Config
	opener  *fakeOpener
	encoder *fakeEncoder
	out     *bytes.Buffer
	deps    Deps
	inputs  []string
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.InputDir = filepath.Join(dir, "input")
	cfg.Dirs = config.WorkDirs{
		Output:    filepath.Join(dir, "output"),
		Temp:      filepath.Join(dir, "output", "temp"),
		Originals: filepath.Join(dir, "input", "processed"),
	}
	cfg.Silence.Margin = 0
	cfg.Zoom.Mode = string(analyzer.ZoomBreathing)
	cfg.AI.CallTimeout = time.Second
	cfg.Stages.Outro = false

	if err := os.MkdirAll(cfg.InputDir, 0755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		cfg:     cfg,
		opener:  &fakeOpener{sources: map[string]system.MediaInfo{}},
		encoder: &fakeEncoder{},
		out:     &bytes.Buffer{},
	}
	for _, name := range names {
		path := filepath.Join(cfg.InputDir, name)
		if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
			t.Fatal(err)
		}
		f.opener.sources[path] = system.MediaInfo{Path: path, Duration: 60, Width: 1920, Height: 1080, FPS: 30, HasVideo: true, HasAudio: true}
		f.inputs = append(f.inputs, path)
	}

	f.deps = Deps{
		Audio:   fakeAudio{},
		Opener:  f.opener,
		Encoder: f.encoder,
		Probe: func(_ context.Context, path string) (system.MediaInfo, error) {
			info, ok := f.opener.sources[path]
			if !ok {
				return system.MediaInfo{}, errors.New("no such file")
			}
			return info, nil
		},
		Producers: Producers{
			Transcriber: fakeTranscriber{segs: lecture},
			Corrector:   &fakeCorrector{},
			KeyTerms:    fixedTerms{"mitral valve", "heart"},
			Suggester:   fakeSuggester{},
			Images:      fakeImages{},
			Music:       fakeMusic{},
			Sounds:      fakeSounds{},
		},
		Progress: f.out,
	}
	return f
}

func (f *fixture) pipeline() *Pipeline {
	return New(f.cfg, f.deps, zerolog.Nop())
}

func (f *fixture) events(t *testing.T) []Event {
	t.Helper()
	var events []Event
	sc := bufio.NewScanner(bytes.NewReader(f.out.Bytes()))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, ProgressPrefix) {
			t.Fatalf("unexpected stdout line %q", line)
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, ProgressPrefix)), &ev); err != nil {
			t.Fatalf("bad progress payload %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestReporterLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, 13, zerolog.Nop())
	r.Next(StageSilence, "a")
	r.Next(StageEnhance, "b")
	r.Next(StageTranscription, "Transcribing speech...")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := `PROGRESS:{"step":"Transcription","current_step":3,"total_steps":13,"percentage":23,"message":"Transcribing speech..."}`
	if lines[2] != want {
		t.Errorf("line = %s\nwant   %s", lines[2], want)
	}

	buf.Reset()
	r.Complete("done")
	want = `PROGRESS:{"step":"Complete","current_step":13,"total_steps":13,"percentage":100,"message":"done"}`
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("complete = %s", got)
	}
}

func TestReporterNeverPassesTotal(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, 2, zerolog.Nop())
	for i := 0; i < 4; i++ {
		r.Next(StageRender, "x")
	}
	r.Update(StageRender, "y")
	if !strings.HasSuffix(strings.TrimSpace(buf.String()), `"current_step":2,"total_steps":2,"percentage":100,"message":"y"}`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestPlannedStages(t *testing.T) {
	tests := []struct {
		name   string
		stages func() config.Stages
		want   int
		first  Stage
	}{
		{"all", config.AllStages, 13, StageSilence},
		{"none", func() config.Stages { return config.Stages{} }, 1, StageRender},
		{"no transcription drops dependents", func() config.Stages {
			s := config.AllStages()
			s.Transcription = false
			return s
		}, 7, StageSilence},
		{"only captions", func() config.Stages {
			return config.Stages{Transcription: true, Subtitles: true}
		}, 3, StageTranscription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlannedStages(tt.stages())
			if len(got) != tt.want {
				t.Fatalf("got %d stages %v, want %d", len(got), got, tt.want)
			}
			if got[0] != tt.first || got[len(got)-1] != StageRender {
				t.Errorf("order = %v", got)
			}
		})
	}
}

func TestProcessVideo(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	p := f.pipeline()

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatalf("ProcessVideo: %v", res.Err)
	}
	if len(res.Degraded) != 0 {
		t.Errorf("degraded stages: %v", res.Degraded)
	}
	if len(f.encoder.jobs) != 1 {
		t.Fatalf("encodes = %d, want 1", len(f.encoder.jobs))
	}
	if res.Duration != 50 {
		t.Errorf("duration = %v, want 50", res.Duration)
	}
	if f.opener.opened != f.opener.closed {
		t.Errorf("opened %d clips, closed %d", f.opener.opened, f.opener.closed)
	}

	plan, err := director.ReadPlan(res.PlanPath)
	if err != nil {
		t.Fatalf("ReadPlan: %v", err)
	}
	if len(plan.Overlays) != 1 || plan.Overlays[0].StartTime != 35 {
		t.Errorf("overlays = %+v, want one at 35s", plan.Overlays)
	}
	if plan.Subtitles[0].Text != "Today we look at the mitral valve" {
		t.Errorf("correction not applied: %q", plan.Subtitles[0].Text)
	}
	if plan.Subtitles[2].Start != 22 {
		t.Errorf("caption not moved to post-cut time: %v", plan.Subtitles[2].Start)
	}
	if plan.Music == nil || plan.TopicCard == nil || !plan.AudioEnhance || len(plan.Zoom) == 0 {
		t.Errorf("plan misses edits: %+v", plan)
	}
	if len(plan.SoundEffects) != 2 {
		t.Errorf("sound effects = %d, want 2", len(plan.SoundEffects))
	}

	events := f.events(t)
	total := len(PlannedStages(f.cfg.Stages))
	last := events[len(events)-1]
	if last.Step != "Complete" || last.CurrentStep != total || last.Percentage != 100 {
		t.Errorf("last event = %+v", last)
	}
	for i := 1; i < len(events); i++ {
		if events[i].CurrentStep < events[i-1].CurrentStep {
			t.Fatalf("step went backwards at %d: %+v", i, events[i])
		}
	}
}

func TestTranscriptionFailureSkipsDependents(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.deps.Producers.Transcriber = fakeTranscriber{err: errors.New("whisper unavailable")}
	corrector := &fakeCorrector{}
	f.deps.Producers.Corrector = corrector
	p := f.pipeline()

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatalf("ProcessVideo: %v", res.Err)
	}
	if corrector.calls != 0 {
		t.Errorf("corrector ran %d times without a transcript", corrector.calls)
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != StageTranscription {
		t.Errorf("degraded = %v", res.Degraded)
	}

	plan, err := director.ReadPlan(res.PlanPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Subtitles) != 0 || len(plan.Overlays) != 0 || len(plan.SoundEffects) != 0 {
		t.Errorf("transcript dependents ran: %+v", plan)
	}
	if plan.Music == nil || len(plan.Cuts) != 2 {
		t.Errorf("independent stages lost: %+v", plan)
	}

	skipped := 0
	for _, ev := range f.events(t) {
		if strings.HasPrefix(ev.Message, "skipped") {
			skipped++
		}
	}
	if skipped != 5 {
		t.Errorf("skipped events = %d, want 5", skipped)
	}
}

func TestOptionalStageFailureDegrades(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.deps.Producers.Music = fakeMusic{err: errors.New("library empty")}
	p := f.pipeline()

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatalf("ProcessVideo: %v", res.Err)
	}
	if len(res.Degraded) != 1 || res.Degraded[0] != StageMusic {
		t.Errorf("degraded = %v", res.Degraded)
	}
	for _, in := range f.encoder.inputs() {
		if in == "calm.mp3" {
			t.Error("music input present after music stage failed")
		}
	}
}

func TestCorrectionMustKeepTiming(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.deps.Producers.Corrector = &fakeCorrector{shift: 0.5}
	p := f.pipeline()

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	plan, err := director.ReadPlan(res.PlanPath)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Subtitles[0].Start != 2 || plan.Subtitles[0].Text != lecture[0].Text {
		t.Errorf("retimed correction was accepted: %+v", plan.Subtitles[0])
	}
}

func TestRunContinuesAfterRenderFailure(t *testing.T) {
	f := newFixture(t, "broken.mp4", "good.mp4")
	f.encoder.failOn = "broken"
	p := f.pipeline()

	report, err := p.Run(context.Background(), f.inputs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Videos) != 2 {
		t.Fatalf("videos = %d", len(report.Videos))
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Input != f.inputs[0] {
		t.Fatalf("failed = %+v", failed)
	}
	var se *StageError
	if !errors.As(failed[0].Err, &se) || se.Stage != StageRender {
		t.Errorf("failure not attributed to rendering: %v", failed[0].Err)
	}
	if f.opener.opened != f.opener.closed {
		t.Errorf("opened %d clips, closed %d", f.opener.opened, f.opener.closed)
	}

	if _, err := os.Stat(f.inputs[0]); err != nil {
		t.Errorf("failed source was moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Dirs.Originals, "good.mp4")); err != nil {
		t.Errorf("processed source not archived: %v", err)
	}
}

func TestRunDiscoversInputs(t *testing.T) {
	f := newFixture(t, "a.mp4", "b.mov")
	f.cfg.KeepOriginals = true
	p := f.pipeline()

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Videos) != 2 || len(f.encoder.jobs) != 2 {
		t.Errorf("videos = %d, encodes = %d", len(report.Videos), len(f.encoder.jobs))
	}
	for _, in := range f.inputs {
		if _, err := os.Stat(in); err != nil {
			t.Errorf("original moved despite keep-originals: %v", err)
		}
	}
}

func TestRunRejectsBadInputs(t *testing.T) {
	f := newFixture(t, "lecture.mp4")

	missing := filepath.Join(f.cfg.InputDir, "missing.mp4")
	if _, err := f.pipeline().Run(context.Background(), []string{f.inputs[0], missing}); err == nil {
		t.Error("missing input accepted")
	}

	if err := os.WriteFile(subtitle.SidecarPath(f.inputs[0]), []byte("1\nnot a timing line\nhello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.pipeline().Run(context.Background(), f.inputs); err == nil {
		t.Error("malformed sidecar captions accepted")
	}
	if len(f.encoder.jobs) != 0 {
		t.Errorf("processing started before validation: %d encodes", len(f.encoder.jobs))
	}
}

func TestRemoveSpans(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.cfg.Stages = config.Stages{SilenceRemoval: true}
	p := f.pipeline()
	p.Remove = []timeline.SilenceCut{{Start: 50, End: 55}}

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.Duration != 45 {
		t.Errorf("duration = %v, want 45", res.Duration)
	}
}

func TestOutroWithEndCard(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.cfg.Stages = config.Stages{Outro: true}
	f.cfg.Media.EndCardDuration = 5
	f.deps.Producers.EndCard = endCard("qr.png")
	p := f.pipeline()

	res := p.ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	plan, err := director.ReadPlan(res.PlanPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Overlays) != 1 {
		t.Fatalf("overlays = %+v", plan.Overlays)
	}
	o := plan.Overlays[0]
	if o.Kind != timeline.KindEndCard || o.StartTime != 55 || o.Size.W != 270 || o.Position.X != 1920-270-45 {
		t.Errorf("end card = %+v size %+v pos %+v", o, *o.Size, *o.Position)
	}
}

type lateSuggester struct{}

func (lateSuggester) Suggest(context.Context, []timeline.SubtitleSegment, string, analyzer.MediaCounts) ([]analyzer.Suggestion, error) {
	return []analyzer.Suggestion{{Start: 52, Duration: 6, Keyword: "valve", Kind: timeline.KindImage}}, nil
}

func TestEndCardKeepsClearOfOverlays(t *testing.T) {
	f := newFixture(t, "lecture.mp4")
	f.cfg.Stages = config.Stages{Transcription: true, Multimedia: true, Outro: true}
	f.cfg.Media.EndCardDuration = 5
	f.cfg.Media.MinGap = 0.5
	f.deps.Producers.Suggester = lateSuggester{}
	f.deps.Producers.EndCard = endCard("qr.png")

	res := f.pipeline().ProcessVideo(context.Background(), f.inputs[0])
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	plan, err := director.ReadPlan(res.PlanPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Overlays) != 2 {
		t.Fatalf("overlays = %+v", plan.Overlays)
	}
	img, card := plan.Overlays[0], plan.Overlays[1]
	if card.Kind != timeline.KindEndCard || card.StartTime != 55 {
		t.Errorf("end card = %+v", card)
	}
	if img.StartTime != 52 || math.Abs(img.End()-54.5) > 1e-9 {
		t.Errorf("image should end half a second before the card: %+v", img)
	}
}

type endCard string

func (e endCard) EndCard(context.Context, string) (string, error) { return string(e), nil }

func TestSoundCues(t *testing.T) {
	segs := []timeline.SubtitleSegment{
		{Start: 0, End: 10, Text: "0123456789 heart"},
		{Start: 10, End: 12, Text: "nothing here"},
		{Start: 20, End: 24, Text: "Heart and valve"},
	}
	cues := soundCues(segs, []string{"valve", "heart"})
	if len(cues) != 2 {
		t.Fatalf("cues = %+v", cues)
	}
	if cues[0].Term != "heart" || cues[0].At != 6.875 {
		t.Errorf("first cue = %+v", cues[0])
	}
	// the first listed term that appears wins
	if cues[1].Term != "valve" || math.Abs(cues[1].At-(20+4*10.0/15.0)) > 1e-9 {
		t.Errorf("second cue = %+v", cues[1])
	}
}

func TestParseSpans(t *testing.T) {
	tests := []struct {
		in      []string
		want    []timeline.SilenceCut
		wantErr bool
	}{
		{in: []string{"12.5-14"}, want: []timeline.SilenceCut{{Start: 12.5, End: 14}}},
		{in: []string{"1-2, 3-4", "10-11"}, want: []timeline.SilenceCut{{Start: 1, End: 2}, {Start: 3, End: 4}, {Start: 10, End: 11}}},
		{in: nil},
		{in: []string{"5-3"}, wantErr: true},
		{in: []string{"abc"}, wantErr: true},
		{in: []string{"1-x"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSpans(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSpans(%v) err = %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseSpans(%v) = %v", tt.in, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseSpans(%v)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	err := error(&StageError{Stage: StageSubtitles, Err: ErrNoTranscript})
	if !errors.Is(err, ErrNoTranscript) {
		t.Error("StageError does not unwrap")
	}
	if err.Error() != "Subtitle Burning: no transcript available" {
		t.Errorf("Error() = %q", err.Error())
	}
}
