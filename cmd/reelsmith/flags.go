package main

import (
	"github.com/spf13/cobra"

	"github.com/ivlev/reelsmith/internal/config"
)

// opts holds flag values. A flag overrides the config only when given.
var opts struct {
	input, output string
	topic         string
	keepOriginals bool
	remove        []string

	threshold  string
	margin     float64
	zoomMode   string
	zoomLevel  string
	brollRatio float64
	imageRatio float64
	slideDeck  string
	endCardURL string

	musicVolume  float64
	speechVolume float64
	intro, outro string

	fontSize     int
	cardStyle    string
	cardPosition string

	preset  string
	quality int
	threads int
	encoder string
	whisper string
	skip    map[string]*bool
}

// skipFlags maps --skip-<name> to its stage toggle.
var skipFlags = []struct {
	name  string
	help  string
	stage func(*config.Stages) *bool
}{
	{"silence", "не вырезать паузы", func(s *config.Stages) *bool { return &s.SilenceRemoval }},
	{"enhance", "не улучшать звук", func(s *config.Stages) *bool { return &s.AudioEnhance }},
	{"transcription", "не распознавать речь (отключает субтитры и всё, что от них зависит)", func(s *config.Stages) *bool { return &s.Transcription }},
	{"correction", "не исправлять субтитры", func(s *config.Stages) *bool { return &s.Correction }},
	{"highlights", "не выделять ключевые термины", func(s *config.Stages) *bool { return &s.Highlights }},
	{"subtitles", "не прожигать субтитры", func(s *config.Stages) *bool { return &s.Subtitles }},
	{"zoom", "без динамического зума", func(s *config.Stages) *bool { return &s.Zoom }},
	{"multimedia", "без B-roll и изображений", func(s *config.Stages) *bool { return &s.Multimedia }},
	{"topic-card", "без карточки темы", func(s *config.Stages) *bool { return &s.TopicCard }},
	{"music", "без фоновой музыки", func(s *config.Stages) *bool { return &s.Music }},
	{"sfx", "без звуковых эффектов", func(s *config.Stages) *bool { return &s.SoundEffects }},
	{"outro", "без аутро и финальной карточки", func(s *config.Stages) *bool { return &s.Outro }},
}

func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "каталог с исходными видео")
	f.StringVar(&opts.output, "output", "", "каталог для готовых видео")
	f.StringVar(&opts.topic, "topic", "", "тема лекции для карточки и подсказок")
	f.BoolVar(&opts.keepOriginals, "keep-originals", false, "не перемещать исходники после обработки")
	f.StringSliceVar(&opts.remove, "remove", nil, "вырезать неудачные дубли, например 12.5-14,30-31.2 (секунды исходника)")

	f.StringVar(&opts.threshold, "threshold", "", "порог тишины: -35dB, 0.02 или auto")
	f.Float64Var(&opts.margin, "margin", 0, "запас вокруг речи при вырезании пауз (сек)")
	f.StringVar(&opts.zoomMode, "zoom-mode", "", "зум: off, breathing, focal, face, hybrid")
	f.StringVar(&opts.zoomLevel, "zoom-intensity", "", "сила зума: subtle, medium, strong")
	f.Float64Var(&opts.brollRatio, "broll-ratio", 0, "B-roll на 30 секунд видео")
	f.Float64Var(&opts.imageRatio, "image-ratio", 0, "изображений на 30 секунд видео")
	f.StringVar(&opts.slideDeck, "slides", "", "PDF со слайдами для вставок-изображений")
	f.StringVar(&opts.endCardURL, "end-card-url", "", "ссылка для QR-кода в финальной карточке")

	f.Float64Var(&opts.musicVolume, "music-volume", 0, "громкость музыки 0..1")
	f.Float64Var(&opts.speechVolume, "speech-volume", 0, "громкость речи")
	f.StringVar(&opts.intro, "intro", "", "ролик-заставка перед видео")
	f.StringVar(&opts.outro, "outro", "", "ролик после видео")

	f.IntVar(&opts.fontSize, "font-size", 0, "размер шрифта субтитров")
	f.StringVar(&opts.cardStyle, "card-style", "", "стиль карточки темы")
	f.StringVar(&opts.cardPosition, "card-position", "", "положение карточки: top, center, bottom")
	f.StringVar(&opts.whisper, "whisper-model", "", "модель распознавания речи")

	p := cmd.PersistentFlags()
	p.StringVar(&opts.preset, "preset", "", "пресет x264: ultrafast ... veryslow")
	p.IntVar(&opts.quality, "quality", 0, "качество (0 - авто, x264: CRF 1-51)")
	p.IntVar(&opts.threads, "threads", 0, "потоки ffmpeg (0 - по ресурсам машины)")
	p.StringVar(&opts.encoder, "encoder", "", "видеокодек (по умолчанию лучший доступный H.264)")

	opts.skip = make(map[string]*bool, len(skipFlags))
	for _, s := range skipFlags {
		opts.skip[s.name] = f.Bool("skip-"+s.name, false, s.help)
	}
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if fl := f.Lookup(name); fl != nil && fl.Changed {
			apply()
		}
	}

	set("input", func() { c.InputDir = opts.input })
	set("output", func() { c.Dirs.Output = opts.output })
	set("topic", func() { c.Topic = opts.topic })
	set("keep-originals", func() { c.KeepOriginals = opts.keepOriginals })

	set("threshold", func() { c.Silence.Threshold = opts.threshold })
	set("margin", func() { c.Silence.Margin = opts.margin })
	set("zoom-mode", func() { c.Zoom.Mode = opts.zoomMode })
	set("zoom-intensity", func() { c.Zoom.Intensity = opts.zoomLevel })
	set("broll-ratio", func() { c.Media.BrollRatio = opts.brollRatio })
	set("image-ratio", func() { c.Media.ImageRatio = opts.imageRatio })
	set("slides", func() { c.Media.SlideDeck = opts.slideDeck })
	set("end-card-url", func() { c.Media.EndCardURL = opts.endCardURL })

	set("music-volume", func() { c.Audio.MusicVolume = opts.musicVolume })
	set("speech-volume", func() { c.Audio.SpeechVolume = opts.speechVolume })
	set("intro", func() { c.Audio.IntroPath = opts.intro })
	set("outro", func() { c.Audio.OutroPath = opts.outro })

	set("font-size", func() { c.FontSize = opts.fontSize })
	set("card-style", func() { c.Card.Style = opts.cardStyle })
	set("card-position", func() { c.Card.Position = opts.cardPosition })

	set("preset", func() { c.Encode.Preset = opts.preset })
	set("quality", func() { c.Encode.Quality = opts.quality })
	set("threads", func() { c.Encode.Threads = opts.threads })
	set("encoder", func() { c.Encode.Encoder = opts.encoder })
	set("whisper-model", func() { c.AI.WhisperModel = opts.whisper })

	for _, s := range skipFlags {
		if v := opts.skip[s.name]; v != nil && *v {
			*s.stage(&c.Stages) = false
		}
	}
}
