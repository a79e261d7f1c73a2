package effects

import (
	"fmt"
	"sort"
	"strings"
)

// CardStyle is the look of a topic card.
type CardStyle struct {
	Background string  // 0xRRGGBB
	Opacity    float64
	Font       string
	Color      string
}

// CardStyles are the named topic card looks.
var CardStyles = map[string]CardStyle{
	"medical":   {Background: "0x003366", Opacity: 0.9, Font: "Arial", Color: "white"},
	"tech":      {Background: "0x1A1A1A", Opacity: 0.8, Font: "Courier", Color: "0x00FF00"},
	"education": {Background: "0x2C3E50", Opacity: 0.9, Font: "Georgia", Color: "0xF1C40F"},
	"modern":    {Background: "0xFFFFFF", Opacity: 0.8, Font: "Helvetica", Color: "black"},
	"animated":  {Background: "0xFF3B3F", Opacity: 0.9, Font: "Impact", Color: "white"},
}

// CardStyleNames lists the styles in a stable order.
func CardStyleNames() []string {
	names := make([]string, 0, len(CardStyles))
	for n := range CardStyles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TopicCard is a titled box shown over the first seconds of the video.
type TopicCard struct {
	Text     string  `yaml:"text"`
	Style    string  `yaml:"style"`
	Position string  `yaml:"position"` // top, center, bottom, top-left, top-right
	Duration float64 `yaml:"duration"`
}

// Filter draws the card box and its upper-cased title.
func (c TopicCard) Filter(f Frame) string {
	st, ok := CardStyles[c.Style]
	if !ok {
		st = CardStyles["medical"]
	}

	// portrait frames get a narrower, flatter card
	cw, ch := int(float64(f.Width)*0.6), int(float64(f.Height)*0.15)
	if f.Portrait() {
		cw, ch = int(float64(f.Width)*0.8), int(float64(f.Height)*0.08)
	}
	x, y := cardPosition(c.Position, f, cw, ch)
	enable := fmt.Sprintf("enable='between(t,0,%s)'", seconds(c.Duration))

	box := fmt.Sprintf("drawbox=x=%d:y=%d:w=%d:h=%d:color=%s@%.2f:t=fill:%s", x, y, cw, ch, st.Background, st.Opacity, enable)
	text := fmt.Sprintf("drawtext=text='%s':font=%s:fontsize=%d:fontcolor=%s:x=%d+(%d-text_w)/2:y=%d+(%d-text_h)/2:%s",
		EscapeText(strings.ToUpper(c.Text)), st.Font, int(float64(ch)*0.4), st.Color, x, cw, y, ch, enable)
	return box + "," + text
}

func cardPosition(pos string, f Frame, cw, ch int) (int, int) {
	top := int(float64(f.Height) * 0.1)
	centreX := (f.Width - cw) / 2
	switch pos {
	case "center":
		return centreX, (f.Height - ch) / 2
	case "bottom":
		return centreX, int(float64(f.Height) * 0.8)
	case "top-left":
		return int(float64(f.Width) * 0.05), top
	case "top-right":
		return int(float64(f.Width)*0.95) - cw, top
	default:
		return centreX, top
	}
}
