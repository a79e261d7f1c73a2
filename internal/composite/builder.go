package composite

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ivlev/reelsmith/internal/effects"
	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/timeline"
	"github.com/ivlev/reelsmith/internal/video"
)

// ErrAlreadyRendered is returned by a second Render on the same builder.
var ErrAlreadyRendered = errors.New("composite already rendered")

// Settings fixes the output canvas and encoder for a builder.
type Settings struct {
	Width, Height int // 0 keeps the source size
	FPS           int // 0 keeps the source rate
	VideoCodec    string
	AudioCodec    string
	Quality       int
	SpeechVolume  float64
	FontSize      int
}

// DefaultSettings returns libx264 at the source geometry with unity speech gain.
func DefaultSettings() Settings {
	return Settings{VideoCodec: "libx264", AudioCodec: "aac", SpeechVolume: 1.0, FontSize: 24}
}

// Music is a background track looped or trimmed to the final length.
type Music struct {
	Path    string  `yaml:"path"`
	Volume  float64 `yaml:"volume"`
	FadeIn  float64 `yaml:"fade_in"`
	FadeOut float64 `yaml:"fade_out"`
}

// SoundEffect is a short sound placed on the post-cut timeline.
type SoundEffect struct {
	Path     string  `yaml:"path"`
	At       float64 `yaml:"at"`
	Duration float64 `yaml:"duration"`
	Volume   float64 `yaml:"volume"`
}

// Builder accumulates edits for one source video and renders them in a
// single encode. A builder renders at most once.
type Builder struct {
	source   string
	opener   source.Opener
	encoder  video.Encoder
	settings Settings
	log      zerolog.Logger

	cuts      []timeline.SilenceCut
	keyframes []timeline.ZoomKeyframe
	overlays  []timeline.MediaOverlay
	subtitles []timeline.SubtitleSegment
	keyTerms  []string
	intros    []string
	outros    []string
	music     *Music
	sounds    []SoundEffect
	card      *effects.TopicCard
	enhance   bool

	rendered bool
	// test hook, runs before each numbered render step
	beforeStep func(step int) error
}

// NewBuilder creates a builder for the video at src.
func NewBuilder(src string, opener source.Opener, encoder video.Encoder, settings Settings, log zerolog.Logger) *Builder {
	if settings.SpeechVolume <= 0 {
		settings.SpeechVolume = 1.0
	}
	return &Builder{
		source:   src,
		opener:   opener,
		encoder:  encoder,
		settings: settings,
		log:      log,
	}
}

// AddSilenceCuts sets the kept intervals of the original timeline.
func (b *Builder) AddSilenceCuts(cuts []timeline.SilenceCut) *Builder {
	b.cuts = append(b.cuts, cuts...)
	sort.Slice(b.cuts, func(i, j int) bool { return b.cuts[i].Start < b.cuts[j].Start })
	return b
}

// AddZoomKeyframes adds camera keyframes in post-cut time.
func (b *Builder) AddZoomKeyframes(kfs []timeline.ZoomKeyframe) *Builder {
	b.keyframes = append(b.keyframes, kfs...)
	sort.SliceStable(b.keyframes, func(i, j int) bool { return b.keyframes[i].Time < b.keyframes[j].Time })
	return b
}

// AddMediaOverlays adds overlays in post-cut time. Overlays must already be
// free of conflicts.
func (b *Builder) AddMediaOverlays(overlays []timeline.MediaOverlay) *Builder {
	b.overlays = append(b.overlays, overlays...)
	sort.SliceStable(b.overlays, func(i, j int) bool { return b.overlays[i].StartTime < b.overlays[j].StartTime })
	return b
}

// AddSubtitles burns cues given in post-cut time. Words matching keyTerms
// are coloured.
func (b *Builder) AddSubtitles(segments []timeline.SubtitleSegment, keyTerms ...string) *Builder {
	b.subtitles = append(b.subtitles, segments...)
	b.keyTerms = append(b.keyTerms, keyTerms...)
	return b
}

func (b *Builder) AddIntro(paths ...string) *Builder {
	b.intros = append(b.intros, paths...)
	return b
}

func (b *Builder) AddOutro(paths ...string) *Builder {
	b.outros = append(b.outros, paths...)
	return b
}

// AddMusic sets the background track. A later call replaces an earlier one.
func (b *Builder) AddMusic(m Music) *Builder {
	b.music = &m
	return b
}

func (b *Builder) AddSoundEffects(sfx []SoundEffect) *Builder {
	b.sounds = append(b.sounds, sfx...)
	return b
}

func (b *Builder) AddTopicCard(card effects.TopicCard) *Builder {
	b.card = &card
	return b
}

// WithAudioEnhance band-limits and loudness-normalises the speech track.
func (b *Builder) WithAudioEnhance(on bool) *Builder {
	b.enhance = on
	return b
}
