package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Executor runs ffmpeg and streams its progress.
type Executor struct {
	log        zerolog.Logger
	ffmpegPath string
	threads    int
}

// NewExecutor locates ffmpeg on PATH.
func NewExecutor(log zerolog.Logger, threads int) (*Executor, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &Executor{
		log:        log.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath: path,
		threads:    threads,
	}, nil
}

// stderrTail keeps the last lines of ffmpeg stderr for error messages.
type stderrTail struct {
	lines []string
	max   int
}

func (t *stderrTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *stderrTail) String() string {
	return strings.Join(t.lines, "\n")
}

// Run executes ffmpeg with args. When progress is set, -progress output is
// parsed against the expected output duration.
func (e *Executor) Run(ctx context.Context, args []string, duration float64, progress ProgressFunc) error {
	base := []string{"-y", "-hide_banner", "-nostats"}
	if e.threads > 0 {
		base = append(base, "-threads", strconv.Itoa(e.threads))
	}
	if progress != nil {
		base = append(base, "-progress", "pipe:2")
	}
	full := append(base, args...)

	e.log.Debug().Strs("args", full).Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	tail := &stderrTail{max: 20}
	parser := &ProgressParser{Duration: duration}
	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if p, ok := parser.Feed(line); ok {
			if progress != nil {
				progress(p)
			}
			continue
		}
		if !strings.Contains(line, "=") || strings.Contains(line, " ") {
			tail.add(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, tail)
	}
	return nil
}

// output runs ffmpeg and returns stdout, with stderr attached to errors.
func (e *Executor) output(ctx context.Context, args []string) ([]byte, []byte, error) {
	full := append([]string{"-hide_banner", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// SilenceSpan is a detected silent range of the source. End is +Inf when
// the silence runs to the end of the file.
type SilenceSpan struct {
	Start float64
	End   float64
}

// DetectSilence runs silencedetect with a dB noise floor.
func (e *Executor) DetectSilence(ctx context.Context, path string, noiseDB, minDuration float64) ([]SilenceSpan, error) {
	e.log.Info().Str("input", path).Float64("noise_db", noiseDB).Float64("min_duration", minDuration).Msg("detecting silence")

	_, stderr, err := e.output(ctx, []string{
		"-i", path,
		"-vn",
		"-af", fmt.Sprintf("silencedetect=noise=%.2fdB:d=%.3f", noiseDB, minDuration),
		"-f", "null", "-",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("silence detection failed: %w", err)
	}
	return ParseSilenceOutput(string(stderr)), nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// ParseSilenceOutput extracts silent spans from silencedetect logs.
func ParseSilenceOutput(output string) []SilenceSpan {
	var spans []SilenceSpan
	open := false
	var start float64

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start, _ = strconv.ParseFloat(m[1], 64)
			start = math.Max(0, start)
			open = true
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open {
			end, _ := strconv.ParseFloat(m[1], 64)
			spans = append(spans, SilenceSpan{Start: start, End: end})
			open = false
		}
	}
	if open {
		spans = append(spans, SilenceSpan{Start: start, End: math.Inf(1)})
	}
	return spans
}

// ExtractPCM decodes the first audio stream to mono signed 16-bit samples.
func (e *Executor) ExtractPCM(ctx context.Context, path string, sampleRate int) ([]int16, error) {
	stdout, stderr, err := e.output(ctx, []string{
		"-i", path,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-",
	})
	if err != nil {
		return nil, fmt.Errorf("pcm extraction failed: %w: %s", err, lastLine(stderr))
	}
	return DecodePCM(bytes.NewReader(stdout))
}

// ExtractAudio writes the speech track to out as 16 kHz mono MP3, small
// enough for an upload to a transcription API.
func (e *Executor) ExtractAudio(ctx context.Context, path, out string) error {
	return e.Run(ctx, []string{
		"-i", path,
		"-vn", "-ac", "1", "-ar", "16000",
		"-c:a", "libmp3lame", "-b:a", "64k",
		out,
	}, 0, nil)
}

// DecodePCM reads little-endian s16 samples.
func DecodePCM(r io.Reader) ([]int16, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, len(data)/2)
	if err := binary.Read(bytes.NewReader(data[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// GrabFrame decodes a single frame at the given source second.
func (e *Executor) GrabFrame(ctx context.Context, path string, at float64) (image.Image, error) {
	stdout, stderr, err := e.output(ctx, []string{
		"-ss", fmt.Sprintf("%.3f", at),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png", "-",
	})
	if err != nil {
		return nil, fmt.Errorf("frame grab at %.2fs failed: %w: %s", at, err, lastLine(stderr))
	}
	if len(stdout) == 0 {
		return nil, errors.New("frame grab produced no image")
	}
	return png.Decode(bytes.NewReader(stdout))
}

func lastLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}
