package video

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Filter graphs longer than this go through -filter_complex_script,
// a single argv entry is capped at 128 KiB on Linux.
const maxInlineFilter = 32 * 1024

// Input is one ffmpeg input with its per-input options.
type Input struct {
	Path string
	Args []string // placed before -i, e.g. -loop 1 -t 4
}

// EncodeJob describes the one encode of a composite.
type EncodeJob struct {
	Inputs        []Input
	FilterComplex string
	VideoMap      string
	AudioMap      string // empty when the result has no audio
	Output        string
	VideoCodec    string
	AudioCodec    string
	Preset        string
	Quality       int
	FPS           int
	Duration      float64 // expected output duration, for progress
}

// Encoder performs a composite encode.
type Encoder interface {
	Encode(ctx context.Context, job EncodeJob, progress ProgressFunc) error
}

// FFmpegEncoder encodes through an Executor.
type FFmpegEncoder struct {
	Exec    *Executor
	TempDir string
}

func (e *FFmpegEncoder) Encode(ctx context.Context, job EncodeJob, progress ProgressFunc) error {
	filterArgs := []string{"-filter_complex", job.FilterComplex}
	if len(job.FilterComplex) > maxInlineFilter {
		f, err := os.CreateTemp(e.TempDir, "filter_*.txt")
		if err != nil {
			return fmt.Errorf("filter script: %w", err)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(job.FilterComplex); err != nil {
			f.Close()
			return fmt.Errorf("filter script: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("filter script: %w", err)
		}
		filterArgs = []string{"-filter_complex_script", f.Name()}
	}

	return e.Exec.Run(ctx, job.Args(filterArgs), job.Duration, progress)
}

// Args builds the ffmpeg argument list. filterArgs replaces the inline
// -filter_complex pair when non-nil.
func (j EncodeJob) Args(filterArgs []string) []string {
	var args []string
	for _, in := range j.Inputs {
		args = append(args, in.Args...)
		args = append(args, "-i", in.Path)
	}

	if filterArgs == nil && j.FilterComplex != "" {
		filterArgs = []string{"-filter_complex", j.FilterComplex}
	}
	args = append(args, filterArgs...)

	args = append(args, "-map", j.VideoMap)
	if j.AudioMap != "" {
		args = append(args, "-map", j.AudioMap)
	}

	codec := j.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	args = append(args, "-c:v", codec, "-pix_fmt", "yuv420p")
	args = append(args, qualityArgs(codec, j.Quality, j.Preset)...)
	if j.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(j.FPS))
	}

	if j.AudioMap != "" {
		audio := j.AudioCodec
		if audio == "" {
			audio = "aac"
		}
		args = append(args, "-c:a", audio, "-b:a", "192k", "-ar", "48000")
	}

	args = append(args, "-movflags", "+faststart", j.Output)
	return args
}

func qualityArgs(codec string, quality int, preset string) []string {
	// Качество в зависимости от энкодера
	switch codec {
	case "h264_videotoolbox":
		if quality == 0 {
			quality = 75
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality == 0 {
			quality = 28
		}
		return []string{"-cq", strconv.Itoa(quality)}
	default: // libx264
		if quality == 0 {
			quality = 23
		}
		if preset == "" {
			preset = "medium"
		}
		return []string{"-crf", strconv.Itoa(quality), "-preset", preset}
	}
}
