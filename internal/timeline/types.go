package timeline

// MediaType identifies what kind of file an overlay shows.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Transition applied to the edges of an overlay.
type Transition string

const (
	TransitionFade Transition = "fade"
	TransitionNone Transition = "none"
)

// Overlay kinds, used to split resolved placements back into their producers.
const (
	KindBroll   = "broll"
	KindImage   = "image"
	KindEndCard = "end_card"
)

// SilenceCut is a kept interval [Start, End) of the original timeline.
type SilenceCut struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

// Duration of the kept interval in seconds
func (c SilenceCut) Duration() float64 {
	return c.End - c.Start
}

// ZoomKeyframe is a camera target at a point of the post-cut timeline.
// CenterX and CenterY are fractions of the frame (0.5 is the middle).
type ZoomKeyframe struct {
	Time    float64 `yaml:"time"`
	Zoom    float64 `yaml:"zoom"` // 1.0 = no zoom
	CenterX float64 `yaml:"center_x"`
	CenterY float64 `yaml:"center_y"`
}

// Point is a pixel position on the output frame.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Size is a pixel size on the output frame.
type Size struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// MediaOverlay places an image or a secondary clip on top of the main video.
// A nil Position centres the overlay.
type MediaOverlay struct {
	StartTime  float64    `yaml:"start_time"`
	Duration   float64    `yaml:"duration"`
	MediaPath  string     `yaml:"media_path"`
	MediaType  MediaType  `yaml:"media_type"`
	Transition Transition `yaml:"transition"`
	Position   *Point     `yaml:"position,omitempty"`
	Size       *Size      `yaml:"size,omitempty"`
	Kind       string     `yaml:"kind,omitempty"`
	Keyword    string     `yaml:"keyword,omitempty"`
	Prompt     string     `yaml:"prompt,omitempty"`
}

// End returns the first second after the overlay.
func (o MediaOverlay) End() float64 {
	return o.StartTime + o.Duration
}

// SubtitleSegment is one caption cue.
type SubtitleSegment struct {
	Index int               `yaml:"index"`
	Start float64           `yaml:"start"`
	End   float64           `yaml:"end"`
	Text  string            `yaml:"text"`
	Style map[string]string `yaml:"style,omitempty"`
}
