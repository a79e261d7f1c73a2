package source

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/system"
	"github.com/ivlev/reelsmith/internal/timeline"
)

func TestParsePageRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantPath string
		wantPage int
		ok       bool
	}{
		{"deck.pdf#page=3", "deck.pdf", 3, true},
		{"slides/Lecture.PDF#page=12", "slides/Lecture.PDF", 12, true},
		{"deck.pdf#page=0", "", 0, false},
		{"deck.pdf", "", 0, false},
		{"photo.png#page=1", "", 0, false},
		{"deck.pdf#page=x", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			path, page, ok := ParsePageRef(tt.ref)
			if ok != tt.ok || path != tt.wantPath || page != tt.wantPage {
				t.Errorf("ParsePageRef(%q) = (%q, %d, %v), want (%q, %d, %v)", tt.ref, path, page, ok, tt.wantPath, tt.wantPage, tt.ok)
			}
		})
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.White)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.png")
	writePNG(t, path, 64, 48)

	o := NewFileOpener(dir, zerolog.Nop())
	clip, err := o.Open(context.Background(), path, KindImage)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if clip.Info().Width != 64 || clip.Info().Height != 48 {
		t.Errorf("unexpected size %dx%d", clip.Info().Width, clip.Info().Height)
	}
	if err := clip.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// user files are never removed
	if _, err := os.Stat(path); err != nil {
		t.Errorf("source image removed on close: %v", err)
	}

	if _, err := o.Open(context.Background(), filepath.Join(dir, "missing.png"), KindImage); err == nil {
		t.Error("expected error for missing image")
	}
}

func TestOpenVideoChecksStreams(t *testing.T) {
	o := NewFileOpener(t.TempDir(), zerolog.Nop())
	o.Probe = func(_ context.Context, path string) (system.MediaInfo, error) {
		switch path {
		case "silent.mp4":
			return system.MediaInfo{Path: path, Duration: 10, HasVideo: true}, nil
		case "broken.mp4":
			return system.MediaInfo{}, errors.New("moov atom not found")
		}
		return system.MediaInfo{Path: path, Duration: 10, HasVideo: true, HasAudio: true}, nil
	}

	ctx := context.Background()
	if _, err := o.Open(ctx, "talk.mp4", KindVideo); err != nil {
		t.Errorf("talk.mp4: %v", err)
	}
	if _, err := o.Open(ctx, "silent.mp4", KindAudio); err == nil {
		t.Error("expected error opening a silent clip as audio")
	}
	if _, err := o.Open(ctx, "broken.mp4", KindVideo); err == nil || !strings.Contains(err.Error(), "moov") {
		t.Errorf("probe error should propagate, got %v", err)
	}
	if _, err := o.Open(ctx, "x", MediaKind("hologram")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestOpenSubtitlesRemovesFileOnClose(t *testing.T) {
	dir := t.TempDir()
	o := NewFileOpener(dir, zerolog.Nop())
	segs := []timeline.SubtitleSegment{{Index: 1, Start: 0, End: 2, Text: "Cardiac output"}}

	for _, terms := range [][]string{nil, {"cardiac"}} {
		clip, err := o.OpenSubtitles(context.Background(), SubtitleRequest{Segments: segs, KeyTerms: terms, Width: 1920, Height: 1080})
		if err != nil {
			t.Fatalf("OpenSubtitles failed: %v", err)
		}
		wantExt := ".srt"
		if len(terms) > 0 {
			wantExt = ".ass"
		}
		if filepath.Ext(clip.Path()) != wantExt {
			t.Errorf("expected %s file, got %s", wantExt, clip.Path())
		}
		if _, err := os.Stat(clip.Path()); err != nil {
			t.Fatalf("caption file missing: %v", err)
		}
		if err := clip.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, err := os.Stat(clip.Path()); !os.IsNotExist(err) {
			t.Errorf("caption file still present after Close")
		}
		if err := clip.Close(); err != nil {
			t.Errorf("second Close should be a no-op, got %v", err)
		}
	}

	if _, err := o.OpenSubtitles(context.Background(), SubtitleRequest{}); err == nil {
		t.Error("expected error for empty cues")
	}
}
