package video

import (
	"strconv"
	"strings"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	Frame   int
	OutTime float64 // seconds of output written
	Speed   string
	Percent float64 // 0-100, only when the expected duration is known
	Done    bool
}

// ProgressFunc receives progress blocks as ffmpeg emits them.
type ProgressFunc func(Progress)

// ProgressParser accumulates key=value lines into Progress blocks.
type ProgressParser struct {
	Duration float64
	cur      Progress
}

// Feed consumes one line and returns a completed block when the line closes one.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}

	switch key {
	case "frame":
		p.cur.Frame, _ = strconv.Atoi(value)
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.cur.OutTime = float64(us) / 1e6
		}
	case "speed":
		p.cur.Speed = strings.TrimSpace(value)
	case "progress":
		out := p.cur
		out.Done = value == "end"
		if p.Duration > 0 {
			out.Percent = out.OutTime / p.Duration * 100
			if out.Percent > 100 || out.Done {
				out.Percent = 100
			}
		}
		p.cur = Progress{}
		return out, true
	}
	return Progress{}, false
}
