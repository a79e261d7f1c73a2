package effects

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SubtitleBurn burns a caption file into the picture. ASS files carry their
// own styling, SRT files get a forced style.
type SubtitleBurn struct {
	Path     string
	FontSize int
}

func (s SubtitleBurn) Filter(f Frame) string {
	if strings.EqualFold(filepath.Ext(s.Path), ".ass") {
		return "ass=filename=" + EscapePath(s.Path)
	}

	size, margin := s.FontSize, 30
	if size <= 0 {
		size = 24
	}
	if f.Portrait() {
		size, margin = max(4, int(float64(size)*0.7)), 10
	}
	style := fmt.Sprintf("FontName=Arial,FontSize=%d,Bold=1,Outline=2,Shadow=1,MarginV=%d", size, margin)
	return fmt.Sprintf("subtitles=filename=%s:original_size=%dx%d:force_style='%s'", EscapePath(s.Path), f.Width, f.Height, style)
}
