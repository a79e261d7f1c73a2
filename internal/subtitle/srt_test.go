package subtitle

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/reelsmith/internal/timeline"
)

const sample = `1
00:00:01,000 --> 00:00:03,500
The left ventricle

2
00:00:04,250 --> 00:01:02,007
pumps blood
into the aorta
`

func TestParse(t *testing.T) {
	segments, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(segments))
	}

	if segments[0].Start != 1.0 || segments[0].End != 3.5 {
		t.Errorf("cue 1 timing = %.3f-%.3f", segments[0].Start, segments[0].End)
	}
	if segments[1].Start != 4.25 {
		t.Errorf("cue 2 start = %.3f, want 4.25", segments[1].Start)
	}
	if got := segments[1].End; got < 62.006 || got > 62.008 {
		t.Errorf("cue 2 end = %.3f, want 62.007", got)
	}
	if segments[1].Text != "pumps blood\ninto the aorta" {
		t.Errorf("cue 2 text = %q", segments[1].Text)
	}
}

func TestParseCRLFAndBOM(t *testing.T) {
	in := "\xef\xbb\xbf1\r\n00:00:00,000 --> 00:00:02,000\r\nhello\r\n\r\n"
	segments, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hello" || segments[0].Index != 1 {
		t.Errorf("unexpected cues: %+v", segments)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing text", "1\n00:00:01,000 --> 00:00:02,000\n"},
		{"bad index", "one\n00:00:01,000 --> 00:00:02,000\ntext\n"},
		{"dot separator", "1\n00:00:01.000 --> 00:00:02.000\ntext\n"},
		{"reversed cue", "1\n00:00:05,000 --> 00:00:02,000\ntext\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestFormatThenParseKeepsTiming(t *testing.T) {
	segments := []timeline.SubtitleSegment{
		{Start: 0.5, End: 2.25, Text: "first"},
		{Start: 3661.001, End: 3662, Text: "second"},
	}

	var buf bytes.Buffer
	if err := Format(&buf, segments); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(buf.String(), "01:01:01,001 --> 01:01:02,000") {
		t.Errorf("unexpected timestamp formatting:\n%s", buf.String())
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !timeline.SameTiming(segments, parsed) {
		t.Errorf("timing changed: %+v", parsed)
	}
}

func TestWriteFileAndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cues.srt")
	segments := []timeline.SubtitleSegment{{Start: 1, End: 2, Text: "systole"}}

	if err := WriteFile(path, segments); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(got) != 1 || got[0].Text != "systole" {
		t.Errorf("unexpected cues: %+v", got)
	}
}

func TestWriteASSHighlights(t *testing.T) {
	segments := []timeline.SubtitleSegment{
		{Start: 1, End: 2.5, Text: "Atrial fibrillation raises stroke risk"},
	}

	var buf bytes.Buffer
	st := DefaultStyle(1920, 1080, 24)
	if err := WriteASS(&buf, segments, st, []string{"atrial fibrillation", "stroke", "Stroke"}); err != nil {
		t.Fatalf("WriteASS failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, `{\c&H0000FFFF&}Atrial fibrillation{\r}`) {
		t.Errorf("first term should be yellow:\n%s", out)
	}
	if !strings.Contains(out, `{\c&H00FFFF00&}stroke{\r}`) {
		t.Errorf("second term should be cyan:\n%s", out)
	}
	if !strings.Contains(out, "Dialogue: 0,0:00:01.00,0:00:02.50,Default") {
		t.Errorf("unexpected dialogue timing:\n%s", out)
	}
}

func TestDefaultStylePortrait(t *testing.T) {
	st := DefaultStyle(1080, 1920, 24)
	if st.FontSize != 16 || st.MarginV != 10 {
		t.Errorf("portrait style = %+v", st)
	}
	if DefaultStyle(1080, 1920, 5).FontSize != 4 {
		t.Error("portrait font size must not drop below 4")
	}
}
