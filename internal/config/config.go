package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigCandidates are tried in order when no config path is given.
var ConfigCandidates = []string{"reelsmith.yaml", "config.yaml"}

// WorkDirs are the directories a run writes to.
type WorkDirs struct {
	Output    string `yaml:"output"`    // edited videos
	Temp      string `yaml:"temp"`      // intermediate files, plans
	Originals string `yaml:"originals"` // processed sources are moved here
}

// Ensure creates every directory.
func (w WorkDirs) Ensure() error {
	for _, d := range []string{w.Output, w.Temp, w.Originals} {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Stages switches pipeline stages on and off.
type Stages struct {
	SilenceRemoval bool `yaml:"silence_removal"`
	AudioEnhance   bool `yaml:"audio_enhance"`
	TopicCard      bool `yaml:"topic_card"`
	Transcription  bool `yaml:"transcription"`
	Correction     bool `yaml:"correction"`
	Highlights     bool `yaml:"highlights"`
	Subtitles      bool `yaml:"subtitles"`
	Zoom           bool `yaml:"zoom"`
	Multimedia     bool `yaml:"multimedia"`
	Music          bool `yaml:"music"`
	SoundEffects   bool `yaml:"sound_effects"`
	Outro          bool `yaml:"outro"`
}

// AllStages has every stage enabled.
func AllStages() Stages {
	return Stages{
		SilenceRemoval: true,
		AudioEnhance:   true,
		TopicCard:      true,
		Transcription:  true,
		Correction:     true,
		Highlights:     true,
		Subtitles:      true,
		Zoom:           true,
		Multimedia:     true,
		Music:          true,
		SoundEffects:   true,
		Outro:          true,
	}
}

// Silence tunes silence removal.
type Silence struct {
	Threshold  string  `yaml:"threshold"` // "-30dB", "0.035" or "auto"
	Margin     float64 `yaml:"margin"`
	MinSilence float64 `yaml:"min_silence"`
}

// Accepted zoom settings.
var (
	ZoomModes       = []string{"off", "breathing", "focal", "face", "hybrid"}
	ZoomIntensities = []string{"subtle", "medium", "strong"}
	ZoomSmoothness  = []string{"low", "medium", "high"}
)

// Zoom tunes dynamic zoom.
type Zoom struct {
	Mode       string `yaml:"mode"`
	Intensity  string `yaml:"intensity"`
	Smoothness string `yaml:"smoothness"`
}

// Media tunes B-roll and image overlays.
type Media struct {
	BrollRatio      float64 `yaml:"broll_ratio"` // per 30s of content
	ImageRatio      float64 `yaml:"image_ratio"`
	OverlayDuration float64 `yaml:"overlay_duration"`
	MinGap          float64 `yaml:"min_gap"`
	BrollDir        string  `yaml:"broll_dir"`
	SlideDeck       string  `yaml:"slide_deck"` // PDF used for image overlays without an API key
	EndCardURL      string  `yaml:"end_card_url"`
	EndCardDuration float64 `yaml:"end_card_duration"`
}

// Audio tunes the final mix.
type Audio struct {
	MusicDir        string  `yaml:"music_dir"`
	MusicVolume     float64 `yaml:"music_volume"`
	SpeechVolume    float64 `yaml:"speech_volume"`
	FadeIn          float64 `yaml:"fade_in"`
	FadeOut         float64 `yaml:"fade_out"`
	SoundEffectsDir string  `yaml:"sound_effects_dir"`
	SoundDuration   float64 `yaml:"sound_duration"`
	SoundVolume     float64 `yaml:"sound_volume"`
	OutroPath       string  `yaml:"outro"`
	IntroPath       string  `yaml:"intro"`
}

// Card tunes the topic card.
type Card struct {
	Style    string  `yaml:"style"`
	Position string  `yaml:"position"`
	Duration float64 `yaml:"duration"`
}

// Encode tunes the single encode.
type Encode struct {
	Preset  string `yaml:"preset"`
	Quality int    `yaml:"quality"` // 0 picks the encoder default
	Threads int    `yaml:"threads"` // 0 sizes from host stats
	Encoder string `yaml:"encoder"` // empty detects the best H.264 encoder
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
}

// AI configures the OpenAI producers.
type AI struct {
	APIKey         string        `yaml:"-"`
	WhisperModel   string        `yaml:"whisper_model"`
	ChatModel      string        `yaml:"chat_model"`
	ImageModel     string        `yaml:"image_model"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	MaxParallel    int           `yaml:"max_parallel"`
	CorrectionHint string        `yaml:"correction_prompt"`
}

// Config is the full run configuration.
type Config struct {
	InputDir      string   `yaml:"input_dir"`
	Dirs          WorkDirs `yaml:"dirs"`
	Topic         string   `yaml:"topic"`
	KeepOriginals bool     `yaml:"keep_originals"`
	FontSize      int      `yaml:"font_size"`
	LogLevel      string   `yaml:"log_level"`

	Stages  Stages  `yaml:"stages"`
	Silence Silence `yaml:"silence"`
	Zoom    Zoom    `yaml:"zoom"`
	Media   Media   `yaml:"media"`
	Audio   Audio   `yaml:"audio"`
	Card    Card    `yaml:"card"`
	Encode  Encode  `yaml:"encode"`
	AI      AI      `yaml:"ai"`
}

// Default returns the tuned defaults.
func Default() Config {
	return Config{
		InputDir: "input",
		Dirs: WorkDirs{
			Output:    "output",
			Temp:      filepath.Join("output", "temp"),
			Originals: filepath.Join("input", "processed"),
		},
		Topic:    "medical education",
		FontSize: 24,
		LogLevel: "info",
		Stages:   AllStages(),
		Silence: Silence{
			Threshold:  "-35dB",
			Margin:     0.2,
			MinSilence: 0.5,
		},
		Zoom: Zoom{
			Mode:       "hybrid",
			Intensity:  "subtle",
			Smoothness: "medium",
		},
		Media: Media{
			BrollRatio:      0.5,
			ImageRatio:      1.0,
			OverlayDuration: 4.0,
			MinGap:          0.5,
			BrollDir:        filepath.Join("assets", "broll"),
			EndCardDuration: 5.0,
		},
		Audio: Audio{
			MusicDir:        filepath.Join("assets", "music"),
			MusicVolume:     0.3,
			SpeechVolume:    1.0,
			FadeIn:          1.0,
			FadeOut:         1.0,
			SoundEffectsDir: filepath.Join("assets", "sfx"),
			SoundDuration:   0.3,
			SoundVolume:     0.6,
		},
		Card: Card{
			Style:    "medical",
			Position: "top",
			Duration: 3.0,
		},
		Encode: Encode{
			Preset: "medium",
		},
		AI: AI{
			WhisperModel: "whisper-1",
			ChatModel:    "gpt-4o-mini",
			ImageModel:   "dall-e-3",
			CallTimeout:  2 * time.Minute,
			MaxParallel:  4,
		},
	}
}

// Load reads defaults, then the YAML file at path or the first candidate
// found, then .env for secrets. A missing candidate file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	candidates := ConfigCandidates
	if explicit {
		candidates = []string{path}
	}

	for _, c := range candidates {
		data, err := os.ReadFile(c)
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", c, err)
		}
		break
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")

	return cfg, cfg.Validate()
}

// Validate rejects values no stage can work with.
func (c Config) Validate() error {
	switch {
	case c.Audio.MusicVolume < 0 || c.Audio.SpeechVolume < 0:
		return fmt.Errorf("volumes must not be negative")
	case c.Silence.Margin < 0:
		return fmt.Errorf("silence margin must not be negative")
	case c.Media.MinGap < 0:
		return fmt.Errorf("overlay min gap must not be negative")
	case c.Card.Duration < 0:
		return fmt.Errorf("topic card duration must not be negative")
	case c.Dirs.Output == "" || c.Dirs.Temp == "":
		return fmt.Errorf("output and temp directories are required")
	case !slices.Contains(ZoomModes, c.Zoom.Mode):
		return fmt.Errorf("zoom mode %q: want one of %v", c.Zoom.Mode, ZoomModes)
	case !slices.Contains(ZoomIntensities, c.Zoom.Intensity):
		return fmt.Errorf("zoom intensity %q: want one of %v", c.Zoom.Intensity, ZoomIntensities)
	case !slices.Contains(ZoomSmoothness, c.Zoom.Smoothness):
		return fmt.Errorf("zoom smoothness %q: want one of %v", c.Zoom.Smoothness, ZoomSmoothness)
	}
	return nil
}
