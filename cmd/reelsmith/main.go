package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ivlev/reelsmith/internal/config"
	"github.com/ivlev/reelsmith/internal/director"
	"github.com/ivlev/reelsmith/internal/engine"
	"github.com/ivlev/reelsmith/internal/logging"
	"github.com/ivlev/reelsmith/internal/producers/library"
	"github.com/ivlev/reelsmith/internal/producers/openai"
	"github.com/ivlev/reelsmith/internal/source"
	"github.com/ivlev/reelsmith/internal/system"
	"github.com/ivlev/reelsmith/internal/video"
)

var (
	cfgFile string
	verbose bool
	pretty  bool

	cfg config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reelsmith [видео...]",
	Short: "reelsmith - монтаж обучающих медицинских видео",
	Long: "Вырезает паузы, добавляет субтитры, зум, B-roll, музыку и карточку темы " +
		"и собирает итоговое видео за один проход ffmpeg.\n" +
		"Без аргументов обрабатывает все видео из input_dir.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Init(level, pretty)

		applyFlags(cmd, &cfg)
		return cfg.Validate()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if len(opts.remove) > 0 {
			spans, err := engine.ParseSpans(opts.remove)
			if err != nil {
				return err
			}
			p.Remove = spans
		}

		report, err := p.Run(cmd.Context(), args)
		if report != nil {
			for _, v := range report.Failed() {
				log.Error().Err(v.Err).Str("input", v.Input).Msg("не удалось обработать")
			}
		}
		return err
	},
}

var renderPlanCmd = &cobra.Command{
	Use:   "render-plan [plan.yaml]",
	Short: "Отрендерить сохранённый план монтажа",
	Long:  "Рендерит план из temp-каталога. Без аргумента берётся самый свежий план.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			latest, err := director.FindLatestPlan(cfg.Dirs.Temp)
			if err != nil {
				return fmt.Errorf("no plan in %s: %w", cfg.Dirs.Temp, err)
			}
			path = latest
		}

		plan, err := director.ReadPlan(path)
		if err != nil {
			return err
		}
		info, err := system.Probe(ctx, plan.Source)
		if err != nil {
			return err
		}
		if err := plan.Validate(info.Duration); err != nil {
			return fmt.Errorf("plan %s: %w", path, err)
		}
		if err := cfg.Dirs.Ensure(); err != nil {
			return err
		}

		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		res, err := p.RenderPlan(ctx, plan, func(pr video.Progress) {
			log.Debug().Float64("percent", pr.Percent).Str("speed", pr.Speed).Msg("render")
		})
		if err != nil {
			return err
		}
		log.Info().
			Str("output", res.Output).
			Float64("duration", res.Duration).
			Int("inputs", res.Inputs).
			Dur("elapsed", res.Elapsed).
			Msg("план отрендерен")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Показать ресурсы машины и выбранный энкодер",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := system.ReadHostStats()
		if err != nil {
			return err
		}
		encoder := cfg.Encode.Encoder
		if encoder == "" {
			encoder = system.GetBestH264Encoder(cmd.Context())
		}
		log.Info().
			Int("cpus", st.LogicalCPUs).
			Uint64("mem_total_mb", st.TotalMemMB).
			Uint64("mem_avail_mb", st.AvailMemMB).
			Float64("mem_used_pct", st.MemUsedPct).
			Int("threads", system.EncoderThreads(cfg.Encode.Threads, st)).
			Str("encoder", encoder).
			Msg("host")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "файл конфигурации (по умолчанию ./reelsmith.yaml или ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "подробный лог")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "человекочитаемый лог вместо JSON")

	registerFlags(rootCmd)

	rootCmd.AddCommand(renderPlanCmd)
	rootCmd.AddCommand(statsCmd)
}

// buildPipeline wires ffmpeg, the producers and the orchestrator.
func buildPipeline(ctx context.Context, cfg config.Config) (*engine.Pipeline, error) {
	system.InitResourceLimits(log.Logger)

	st, err := system.ReadHostStats()
	if err != nil {
		log.Warn().Err(err).Msg("host stats unavailable")
	}
	exec, err := video.NewExecutor(log.Logger, system.EncoderThreads(cfg.Encode.Threads, st))
	if err != nil {
		return nil, err
	}

	if cfg.Encode.Encoder == "" {
		cfg.Encode.Encoder = system.GetBestH264Encoder(ctx)
		if cfg.Encode.Encoder != "libx264" {
			log.Info().Str("encoder", cfg.Encode.Encoder).Msg("аппаратное ускорение")
		}
	}

	producers, err := buildProducers(cfg, exec)
	if err != nil {
		return nil, err
	}

	deps := engine.Deps{
		Audio:     exec,
		Frames:    exec,
		Opener:    source.NewFileOpener(cfg.Dirs.Temp, log.Logger),
		Encoder:   &video.FFmpegEncoder{Exec: exec, TempDir: cfg.Dirs.Temp},
		Producers: producers,
		Progress:  os.Stdout,
	}
	return engine.New(cfg, deps, log.Logger), nil
}

// buildProducers prefers the OpenAI adapters and falls back to local
// folders and sidecar captions when no key is set.
func buildProducers(cfg config.Config, exec *video.Executor) (engine.Producers, error) {
	p := engine.Producers{
		Transcriber: library.Sidecar{},
		Corrector:   library.Identity{},
		KeyTerms:    library.FrequencyTerms{},
		Suggester:   library.EvenSuggester{Duration: cfg.Media.OverlayDuration},
		Broll:       library.NewBrollLibrary(cfg.Media.BrollDir),
		Music:       library.NewMusicLibrary(cfg.Audio.MusicDir),
		Sounds:      library.NewSoundLibrary(cfg.Audio.SoundEffectsDir),
	}
	if cfg.Media.SlideDeck != "" {
		p.Images = library.NewSlideImages(cfg.Media.SlideDeck)
	}
	if cfg.Media.EndCardURL != "" {
		p.EndCard = library.QRCard{URL: cfg.Media.EndCardURL}
	}

	ai, err := openai.New(cfg.AI, exec, cfg.Dirs.Temp, log.Logger)
	switch {
	case errors.Is(err, openai.ErrNoAPIKey):
		log.Info().Msg("OPENAI_API_KEY не задан, используются локальные источники")
		return p, nil
	case err != nil:
		return p, err
	}

	p.Transcriber = library.SidecarFirst{Fallback: ai}
	p.Corrector = ai
	p.KeyTerms = ai
	p.Suggester = ai
	if p.Images == nil {
		p.Images = ai
	}
	return p, nil
}
