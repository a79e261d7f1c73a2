package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// ParseSpans reads "start-end" pairs in seconds, e.g. "12.5-14,30-31.2".
func ParseSpans(args []string) ([]timeline.SilenceCut, error) {
	var spans []timeline.SilenceCut
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			a, b, ok := strings.Cut(part, "-")
			if !ok {
				return nil, fmt.Errorf("span %q: want start-end", part)
			}
			start, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
			if err != nil {
				return nil, fmt.Errorf("span %q: %w", part, err)
			}
			end, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
			if err != nil {
				return nil, fmt.Errorf("span %q: %w", part, err)
			}
			if start < 0 || end <= start {
				return nil, fmt.Errorf("span %q: end must follow start", part)
			}
			spans = append(spans, timeline.SilenceCut{Start: start, End: end})
		}
	}
	return spans, nil
}
