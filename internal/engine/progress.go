package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// ProgressPrefix tags progress lines for a supervising process.
const ProgressPrefix = "PROGRESS:"

// Event is the payload of one progress line.
type Event struct {
	Step        string `json:"step"`
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	Percentage  int    `json:"percentage"`
	Message     string `json:"message"`
}

// Reporter writes PROGRESS:{json} lines. The step counter only moves forward.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	log     zerolog.Logger
	total   int
	current int
}

func NewReporter(w io.Writer, total int, log zerolog.Logger) *Reporter {
	return &Reporter{w: w, total: total, log: log}
}

// Next advances the counter and reports step.
func (r *Reporter) Next(step Stage, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current < r.total {
		r.current++
	}
	r.emit(string(step), message)
}

// Update reports on the current step without advancing.
func (r *Reporter) Update(step Stage, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emit(string(step), message)
}

// Complete reports the final step.
func (r *Reporter) Complete(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.total
	r.emit("Complete", message)
}

func (r *Reporter) emit(step, message string) {
	ev := Event{
		Step:        step,
		CurrentStep: r.current,
		TotalSteps:  r.total,
		Percentage:  percentage(r.current, r.total),
		Message:     message,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Warn().Err(err).Msg("progress event not encoded")
		return
	}
	if r.w != nil {
		fmt.Fprintf(r.w, "%s%s\n", ProgressPrefix, data)
	}
	r.log.Debug().
		Str("step", step).
		Int("current", ev.CurrentStep).
		Int("total", ev.TotalSteps).
		Int("percent", ev.Percentage).
		Msg(message)
}

func percentage(cur, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(cur) / float64(total) * 100)
}
