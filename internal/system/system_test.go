package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseProbe(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "60.500000"},
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio"}
		]
	}`)

	info, err := ParseProbe("talk.mp4", data)
	if err != nil {
		t.Fatalf("ParseProbe failed: %v", err)
	}
	if info.Duration != 60.5 || info.Width != 1920 || !info.HasAudio || !info.HasVideo {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Errorf("expected ~29.97 fps, got %.3f", info.FPS)
	}
	if info.Portrait() {
		t.Error("landscape frame reported as portrait")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParseFrameRate(tt.in); got != tt.want {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFindVideosAndLatest(t *testing.T) {
	dir := t.TempDir()
	names := []string{"b_lecture.MP4", "a_lecture.mov", "notes.txt", ".hidden.mp4"}
	for i, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(p, mod, mod)
	}

	videos, err := FindVideos(dir)
	if err != nil {
		t.Fatalf("FindVideos failed: %v", err)
	}
	if len(videos) != 2 || filepath.Base(videos[0]) != "a_lecture.mov" {
		t.Errorf("unexpected videos: %v", videos)
	}

	latest, err := FindLatest(dir, VideoExtensions)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if filepath.Base(latest) != "a_lecture.mov" {
		t.Errorf("expected a_lecture.mov to be latest, got %s", latest)
	}

	if _, err := FindVideos(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestEncoderThreads(t *testing.T) {
	if got := EncoderThreads(3, HostStats{LogicalCPUs: 16}); got != 3 {
		t.Errorf("configured threads ignored: %d", got)
	}
	if got := EncoderThreads(0, HostStats{LogicalCPUs: 8, TotalMemMB: 8000, MemUsedPct: 50}); got != 7 {
		t.Errorf("expected 7 threads, got %d", got)
	}
	if got := EncoderThreads(0, HostStats{LogicalCPUs: 8, TotalMemMB: 8000, MemUsedPct: 95}); got != 3 {
		t.Errorf("expected 3 threads under memory pressure, got %d", got)
	}
	if got := EncoderThreads(0, HostStats{LogicalCPUs: 1}); got != 1 {
		t.Errorf("expected at least one thread, got %d", got)
	}
}

func TestImagePoolReuse(t *testing.T) {
	rect := image.Rect(0, 0, 32, 18)
	img := GetImage(rect)
	if img.Rect != rect {
		t.Fatalf("unexpected rect %v", img.Rect)
	}
	PutImage(img)
	PutImage(nil)
	if again := GetImage(rect); again.Rect != rect {
		t.Errorf("unexpected rect after reuse %v", again.Rect)
	}
}
