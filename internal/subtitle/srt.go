package subtitle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// ErrMalformed is returned for caption files that break the block grammar.
var ErrMalformed = errors.New("malformed caption file")

var timingLine = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// Parse reads numbered caption blocks:
//
//	1
//	00:00:01,000 --> 00:00:03,500
//	text line
//	(more text lines)
//
// Blocks are separated by blank lines.
func Parse(r io.Reader) ([]timeline.SubtitleSegment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var segments []timeline.SubtitleSegment
	var block []string
	blockLine := 0

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		seg, err := parseBlock(block, blockLine)
		if err != nil {
			return err
		}
		segments = append(segments, seg)
		block = block[:0]
		return nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if len(block) == 0 {
			blockLine = lineNo
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return segments, nil
}

func parseBlock(lines []string, lineNo int) (timeline.SubtitleSegment, error) {
	if len(lines) < 3 {
		return timeline.SubtitleSegment{}, fmt.Errorf("%w: block at line %d has %d lines, want index, timing and text", ErrMalformed, lineNo, len(lines))
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return timeline.SubtitleSegment{}, fmt.Errorf("%w: line %d: bad index %q", ErrMalformed, lineNo, lines[0])
	}
	m := timingLine.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if m == nil {
		return timeline.SubtitleSegment{}, fmt.Errorf("%w: line %d: bad timing %q", ErrMalformed, lineNo+1, lines[1])
	}
	start := clock(m[1], m[2], m[3], m[4])
	end := clock(m[5], m[6], m[7], m[8])
	if end < start {
		return timeline.SubtitleSegment{}, fmt.Errorf("%w: line %d: cue ends before it starts", ErrMalformed, lineNo+1)
	}
	return timeline.SubtitleSegment{
		Index: index,
		Start: start,
		End:   end,
		Text:  strings.Join(lines[2:], "\n"),
	}, nil
}

func clock(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	mss, _ := strconv.Atoi(ms)
	return float64(hh*3600+mm*60+ss) + float64(mss)/1000.0
}

// ParseFile parses a caption file from disk.
func ParseFile(path string) ([]timeline.SubtitleSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	segments, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return segments, nil
}

// Timestamp formats seconds as HH:MM:SS,mmm.
func Timestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(math.Round(sec * 1000))
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Format writes cues in the numbered block grammar, renumbering from 1.
func Format(w io.Writer, segments []timeline.SubtitleSegment) error {
	bw := bufio.NewWriter(w)
	for i, s := range segments {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, Timestamp(s.Start), Timestamp(s.End), s.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes cues to path.
func WriteFile(path string, segments []timeline.SubtitleSegment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Format(f, segments); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// PlainText joins cue texts with spaces.
func PlainText(segments []timeline.SubtitleSegment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, strings.ReplaceAll(s.Text, "\n", " "))
	}
	return strings.Join(parts, " ")
}

// SidecarPath is the caption file expected next to a video.
func SidecarPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".srt"
}
