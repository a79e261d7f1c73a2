package effects

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/analyzer"
	"github.com/ivlev/reelsmith/internal/timeline"
)

var landscape = Frame{Width: 1920, Height: 1080, FPS: 30}

func TestOverlayChainImage(t *testing.T) {
	o := timeline.MediaOverlay{
		StartTime:  12,
		Duration:   4,
		MediaType:  timeline.MediaImage,
		Transition: timeline.TransitionFade,
	}
	stmts := OverlayChain("v0", "3:v", "v1", o, landscape)
	if len(stmts) != 2 {
		t.Fatalf("expected prep and overlay statements, got %d", len(stmts))
	}

	prep, over := stmts[0], stmts[1]
	for _, want := range []string{
		"format=rgba",
		"fade=t=in:st=0:d=0.500:alpha=1",
		"fade=t=out:st=3.500:d=0.500:alpha=1",
		"setpts=PTS-STARTPTS+12.000/TB",
	} {
		if !strings.Contains(prep, want) {
			t.Errorf("prep chain missing %q: %s", want, prep)
		}
	}
	if strings.Contains(prep, "trim=") {
		t.Errorf("image overlays are bounded by their input, not trimmed: %s", prep)
	}
	if !strings.HasPrefix(over, "[v0][v1src]overlay=") || !strings.HasSuffix(over, "[v1]") {
		t.Errorf("unexpected overlay statement %s", over)
	}
	if !strings.Contains(over, "enable='between(t,12.000,16.000)'") || !strings.Contains(over, "eof_action=pass") {
		t.Errorf("overlay must be enabled only in its window: %s", over)
	}
}

func TestOverlayChainVideoPositioned(t *testing.T) {
	o := timeline.MediaOverlay{
		StartTime:  35,
		Duration:   0.6,
		MediaType:  timeline.MediaVideo,
		Transition: timeline.TransitionNone,
		Position:   &timeline.Point{X: 40, Y: 60},
		Size:       &timeline.Size{W: 640, H: 360},
	}
	stmts := OverlayChain("v1", "4:v", "v2", o, landscape)
	if !strings.Contains(stmts[0], "trim=duration=0.600") || !strings.Contains(stmts[0], "scale=640:360") {
		t.Errorf("video overlay should be trimmed and scaled: %s", stmts[0])
	}
	if strings.Contains(stmts[0], "fade=") {
		t.Errorf("no fades expected without a transition: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "overlay=x=40:y=60") {
		t.Errorf("explicit position ignored: %s", stmts[1])
	}
}

func TestTopicCard(t *testing.T) {
	card := TopicCard{Text: "Heart: anatomy 101%", Style: "tech", Position: "top", Duration: 3}
	f := card.Filter(landscape)

	if !strings.Contains(f, "drawbox=x=384:y=108:w=1152:h=162:color=0x1A1A1A@0.80:t=fill") {
		t.Errorf("unexpected card box: %s", f)
	}
	if !strings.Contains(f, `text='HEART\: ANATOMY 101\\%'`) {
		t.Errorf("title not upper-cased and escaped: %s", f)
	}
	if strings.Count(f, "enable='between(t,0,3.000)'") != 2 {
		t.Errorf("box and text should share the time window: %s", f)
	}

	portrait := card.Filter(Frame{Width: 1080, Height: 1920, FPS: 30})
	if !strings.Contains(portrait, "w=864:h=153") {
		t.Errorf("portrait card should be 80%% x 8%%: %s", portrait)
	}

	fallback := TopicCard{Text: "x", Style: "nope", Position: "top-right", Duration: 1}.Filter(landscape)
	if !strings.Contains(fallback, "0x003366") || !strings.Contains(fallback, "drawbox=x=672:") {
		t.Errorf("unknown style should fall back to medical at top-right: %s", fallback)
	}
}

func TestSubtitleBurn(t *testing.T) {
	srt := SubtitleBurn{Path: "/tmp/work dir/captions.srt", FontSize: 30}.Filter(Frame{Width: 1080, Height: 1920, FPS: 30})
	for _, want := range []string{"subtitles=filename=/tmp/work dir/captions.srt", "FontSize=21", "MarginV=10", "Bold=1,Outline=2,Shadow=1"} {
		if !strings.Contains(srt, want) {
			t.Errorf("srt burn missing %q: %s", want, srt)
		}
	}

	ass := SubtitleBurn{Path: "/tmp/captions.ass"}.Filter(landscape)
	if ass != "ass=filename=/tmp/captions.ass" {
		t.Errorf("unexpected ass burn %s", ass)
	}
}

func TestEscapePath(t *testing.T) {
	tests := map[string]string{
		"/tmp/a.srt":       "/tmp/a.srt",
		"C:/work/a.srt":    `C\\:/work/a.srt`,
		"/tmp/it's[1].srt": `/tmp/it\\\'s\[1\].srt`,
		"/tmp/a,b;c.srt":   `/tmp/a\,b\;c.srt`,
	}
	for in, want := range tests {
		if got := EscapePath(in); got != want {
			t.Errorf("EscapePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAudioChains(t *testing.T) {
	speech := SpeechChain("0:a", "speech", 1.0, true)
	if !strings.Contains(speech, "volume=1.000,"+EnhanceChain) {
		t.Errorf("enhance chain missing: %s", speech)
	}
	if strings.Contains(SpeechChain("0:a", "speech", 1.0, false), "loudnorm") {
		t.Error("enhance applied while disabled")
	}

	music := MusicChain("5:a", "music", 50, 0.3, 1, 1)
	for _, want := range []string{"atrim=0:50.000", "volume=0.300", "afade=t=in:st=0:d=1.000", "afade=t=out:st=49.000:d=1.000"} {
		if !strings.Contains(music, want) {
			t.Errorf("music chain missing %q: %s", want, music)
		}
	}

	cue := CueChain("6:a", "sfx0", 12.25, 0.3, 0.6)
	if !strings.Contains(cue, "adelay=12250|12250") || !strings.Contains(cue, "atrim=0:0.300") {
		t.Errorf("unexpected cue chain %s", cue)
	}

	mix := Mix([]string{"speech", "music", "sfx0"}, "aout")
	if mix != "[speech][music][sfx0]amix=inputs=3:duration=first:dropout_transition=0:normalize=0[aout]" {
		t.Errorf("unexpected mix %s", mix)
	}
}

func TestBookends(t *testing.T) {
	c := Concat([][2]string{{"iv", "ia"}, {"mv", "ma"}, {"ov", "oa"}}, "vout", "aout")
	if c != "[iv][ia][mv][ma][ov][oa]concat=n=3:v=1:a=1[vout][aout]" {
		t.Errorf("unexpected concat %s", c)
	}
	if v := NormalizeVideo("1:v", "iv", landscape); !strings.Contains(v, "pad=1920:1080") || !strings.Contains(v, "fps=30") {
		t.Errorf("unexpected normalisation %s", v)
	}
	if a := SilentAudio("ia", 4); !strings.HasPrefix(a, "anullsrc=") || !strings.Contains(a, "atrim=0:4.000") {
		t.Errorf("unexpected silent filler %s", a)
	}
}

func TestZoomEffect(t *testing.T) {
	f := ZoomEffect{Keyframes: []timeline.ZoomKeyframe{{Time: 0, Zoom: 1, CenterX: 0.5, CenterY: 0.5}, {Time: 2, Zoom: 1.2, CenterX: 0.5, CenterY: 0.5}}}.Filter(landscape)
	if !strings.Contains(f, "scale=3840:2160") || !strings.Contains(f, "zoompan=") || !strings.Contains(f, "s=1920x1080") {
		t.Errorf("unexpected zoom effect %s", f)
	}
	if (ZoomEffect{}).Filter(landscape) == "" {
		t.Error("empty keyframes should still fit the frame")
	}
}

func TestZoomEffectLongLecture(t *testing.T) {
	opts := analyzer.DefaultZoomOptions()
	opts.Mode = analyzer.ZoomBreathing
	kfs, err := analyzer.AnalyzeZoom(context.Background(), 600, opts, nil, nil, analyzer.TranscriptCues{}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	f := ZoomEffect{Keyframes: kfs}.Filter(landscape)
	depth, deepest := 0, 0
	for _, r := range f {
		switch r {
		case '(':
			depth++
			deepest = max(deepest, depth)
		case ')':
			depth--
		}
	}
	if deepest > 8 {
		t.Errorf("zoompan expression nests %d deep for a 10 minute video", deepest)
	}
	if depth != 0 {
		t.Error("unbalanced parentheses")
	}
	if terms := strings.Count(f, "gte(on,"); terms >= 3*len(kfs) {
		t.Errorf("collinear keyframes not simplified: %d gated terms for %d keyframes", terms, len(kfs))
	}
}
