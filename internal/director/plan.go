package director

import (
	"time"

	"github.com/ivlev/reelsmith/internal/composite"
	"github.com/ivlev/reelsmith/internal/effects"
	"github.com/ivlev/reelsmith/internal/timeline"
)

// PlanVersion is written into every plan file.
const PlanVersion = "1.0"

// Plan is the complete edit decision list for one video
type Plan struct {
	Version   string    `yaml:"version"`
	Source    string    `yaml:"source"`
	Output    string    `yaml:"output"`
	CreatedAt time.Time `yaml:"created_at"`
	Duration  float64   `yaml:"duration"` // expected post-cut main content length

	Cuts         []timeline.SilenceCut      `yaml:"cuts,omitempty"`
	Zoom         []timeline.ZoomKeyframe    `yaml:"zoom,omitempty"`
	Overlays     []timeline.MediaOverlay    `yaml:"overlays,omitempty"`
	Subtitles    []timeline.SubtitleSegment `yaml:"subtitles,omitempty"`
	KeyTerms     []string                   `yaml:"key_terms,omitempty"`
	Intros       []string                   `yaml:"intros,omitempty"`
	Outros       []string                   `yaml:"outros,omitempty"`
	Music        *composite.Music           `yaml:"music,omitempty"`
	SoundEffects []composite.SoundEffect    `yaml:"sound_effects,omitempty"`
	TopicCard    *effects.TopicCard         `yaml:"topic_card,omitempty"`
	AudioEnhance bool                       `yaml:"audio_enhance"`
	Preset       string                     `yaml:"preset,omitempty"`
}

// NewPlan starts an empty plan for a source video
func NewPlan(source, output string) *Plan {
	return &Plan{
		Version:   PlanVersion,
		Source:    source,
		Output:    output,
		CreatedAt: time.Now(),
	}
}
