package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ivlev/reelsmith/internal/timeline"
)

// Highlight colours in ASS BGR order: yellow, cyan, lime.
var highlightColors = []string{"&H0000FFFF", "&H00FFFF00", "&H0000FF00"}

// Style describes the default caption style of an ASS file.
type Style struct {
	FontName string
	FontSize int
	PlayResX int
	PlayResY int
	MarginV  int
}

// DefaultStyle returns the burn-in style for a frame size. Portrait frames
// get a smaller font and a tighter bottom margin.
func DefaultStyle(width, height, fontSize int) Style {
	st := Style{FontName: "Arial", FontSize: fontSize, PlayResX: width, PlayResY: height, MarginV: 30}
	if height > width {
		st.FontSize = max(4, int(float64(fontSize)*0.7))
		st.MarginV = 10
	}
	return st
}

// WriteASS writes cues as an ASS script, colouring words that match keyterms.
func WriteASS(w io.Writer, segments []timeline.SubtitleSegment, st Style, keyterms []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nWrapStyle: 0\n\n", st.PlayResX, st.PlayResY)
	fmt.Fprint(bw, "[V4+ Styles]\n")
	fmt.Fprint(bw, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,2,1,2,10,10,%d,1\n\n", st.FontName, st.FontSize, st.MarginV)
	fmt.Fprint(bw, "[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	hl := newHighlighter(keyterms)
	for _, s := range segments {
		text := strings.ReplaceAll(s.Text, "\n", `\N`)
		text = hl.apply(text)
		if _, err := fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTime(s.Start), assTime(s.End), text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteASSFile writes an ASS script to path.
func WriteASSFile(path string, segments []timeline.SubtitleSegment, st Style, keyterms []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteASS(f, segments, st, keyterms); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func assTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	cs := int64(math.Round(sec * 100))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, (cs/6000)%60, (cs/100)%60, cs%100)
}

type highlighter struct {
	re     *regexp.Regexp
	colors map[string]string
}

func newHighlighter(keyterms []string) *highlighter {
	terms := make([]string, 0, len(keyterms))
	colors := make(map[string]string)
	for _, k := range keyterms {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, dup := colors[key]; dup {
			continue
		}
		colors[key] = highlightColors[len(terms)%len(highlightColors)]
		terms = append(terms, k)
	}
	if len(terms) == 0 {
		return &highlighter{}
	}
	// longest first so multi-word terms win over their parts
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return &highlighter{
		re:     regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`),
		colors: colors,
	}
}

func (h *highlighter) apply(text string) string {
	if h.re == nil {
		return text
	}
	return h.re.ReplaceAllStringFunc(text, func(m string) string {
		c := h.colors[strings.ToLower(m)]
		return fmt.Sprintf(`{\c%s&}%s{\r}`, c, m)
	})
}
