package system

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
)

// VideoExtensions are the containers picked up by input discovery.
var VideoExtensions = []string{".mp4", ".mov", ".mkv", ".m4v", ".avi", ".webm"}

// AudioExtensions are the formats used for music and sound effects.
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}

// ImageExtensions are the still formats accepted as overlays.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("cannot read open file limit")
		return
	}

	// ffmpeg держит открытыми все входы композиции одновременно
	rLimit.Cur = 4096
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("cannot raise open file limit")
	} else {
		log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
	}
}

// HasExtension reports whether name ends with one of exts (case-insensitive).
func HasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FindFiles lists files in dir with one of exts, sorted by name.
func FindFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, f := range entries {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		if HasExtension(f.Name(), exts) {
			files = append(files, filepath.Join(dir, f.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// FindVideos returns every video in dir, sorted by name.
func FindVideos(dir string) ([]string, error) {
	files, err := FindFiles(dir, VideoExtensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no video files found in %s", dir)
	}
	return files, nil
}

// FindLatest returns the most recently modified file in dir with one of exts.
func FindLatest(dir string, exts []string) (string, error) {
	files, err := FindFiles(dir, exts)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestMod int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latestFile == "" || mod > latestMod {
			latestFile, latestMod = f, mod
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no matching files found in %s", dir)
	}
	return latestFile, nil
}

// MediaInfo is what the pipeline needs to know about a media file.
type MediaInfo struct {
	Path     string
	Duration float64
	Width    int
	Height   int
	FPS      float64
	HasVideo bool
	HasAudio bool
}

// Portrait reports whether the frame is taller than wide.
func (m MediaInfo) Portrait() bool {
	return m.Height > m.Width
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func Probe(ctx context.Context, path string) (MediaInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(path, out)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(path string, data []byte) (MediaInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := MediaInfo{Path: path}
	info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width, info.Height = s.Width, s.Height
			info.FPS = ParseFrameRate(s.RFrameRate)
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// ParseFrameRate parses "30000/1001" or "25".
func ParseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg has one.
func GetBestH264Encoder(ctx context.Context) string {
	// Приоритеты: VideoToolbox (macOS), NVENC, затем программный libx264
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}
