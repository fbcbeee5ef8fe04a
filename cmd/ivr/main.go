package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	log "log/slog"

	"ivr/internal/audio"
	"ivr/internal/azure"
	"ivr/internal/cache"
	"ivr/internal/config"
	"ivr/internal/dialogue"
	"ivr/internal/events"
	"ivr/internal/menu"
	"ivr/internal/metrics"
	"ivr/internal/proxy"
	"ivr/internal/speech"
	"ivr/internal/tts"
	"ivr/pkg/stt"
)

func main() {
	level := new(log.LevelVar)
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())

	log.Info("Booting up", "engine", cfg.Engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("IVR stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := menu.Default()
	if cfg.MenuFile != "" {
		loaded, err := menu.Load(cfg.MenuFile)
		if err != nil {
			return err
		}
		m = loaded
	}
	log.Debug("Loaded menu", "options", len(m.Options), "exit", m.ExitID)

	strategy, err := menu.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	rec := audio.NewRecorder(audio.RecorderOptions{
		SilenceThreshold: cfg.SilenceThreshold,
		SilenceDuration:  cfg.SilenceDuration,
		MaxLength:        cfg.MaxUtterance,
	})
	if err := rec.Init(); err != nil {
		return fmt.Errorf("init audio input: %w", err)
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	player := audio.NewPlayer()
	defer player.Close()

	var (
		synth       speech.Synthesizer
		transcriber speech.Transcriber
	)

	switch cfg.Engine {
	case config.EngineAzure:
		client, closeHTTP, err := newAzure(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeHTTP()

		clipCache, err := newCache(ctx, cfg)
		if err != nil {
			return err
		}
		if c, ok := clipCache.(interface{ Close() error }); ok {
			defer c.Close()
		}

		synth = speech.NewCachedSynthesizer(client, player, clipCache, client.Voice())
		transcriber = client

	case config.EngineLocal:
		espeak, err := tts.NewEspeak(cfg.EspeakVoice, 0)
		if err != nil {
			return err
		}
		defer espeak.Close()

		whisper, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{
			Language:      whisperLanguage(cfg.Language),
			InitialPrompt: vocabulary(m),
		})
		if err != nil {
			return err
		}
		defer whisper.Close()
		log.Debug("Loaded whisper", "model", cfg.WhisperModel)

		synth = espeak
		transcriber = whisper
	}

	recognizer := speech.NewMicRecognizer(rec, transcriber)
	if cfg.CueFile != "" {
		cue, err := os.ReadFile(cfg.CueFile)
		if err != nil {
			return err
		}
		recognizer.WithCue(player, cue)
	}

	var observers dialogue.Observers

	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector()
		observers = append(observers, collector)
		go func() {
			if err := collector.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	if cfg.BusURL != "" {
		bus, err := events.NewBus(cfg.BusURL, "ivr", uuid.NewString())
		if err != nil {
			log.Warn("Failed to connect to bus, continuing without events", "url", cfg.BusURL, "err", err)
		} else {
			defer bus.Close()
			observers = append(observers, bus)
		}
	}

	session, err := dialogue.NewSession(dialogue.Config{
		Menu:          m,
		Strategy:      strategy,
		MaxAttempts:   cfg.MaxAttempts,
		ListenTimeout: cfg.ListenTimeout,
	}, synth, recognizer, observers)
	if err != nil {
		return err
	}

	log.Info("Boot up - successful")

	res, err := session.Run(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		log.Info("Interrupted", "turns", res.Turns)
		return nil
	}
	return err
}

func newAzure(ctx context.Context, cfg *config.Config) (*azure.Client, func(), error) {
	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, 120*time.Second)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("Loaded proxy", "proxy", proxy.Describe(cfg.Proxy))

	client, err := azure.NewClient(azure.Config{
		Key:        cfg.AzureKey,
		Region:     cfg.AzureRegion,
		Voice:      cfg.Voice,
		Language:   cfg.Language,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, nil, err
	}

	vctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Verify(vctx); err != nil {
		return nil, nil, err
	}
	log.Debug("Verified Azure credentials", "region", cfg.AzureRegion, "voice", client.Voice())

	return client, httpClient.CloseIdleConnections, nil
}

func newCache(ctx context.Context, cfg *config.Config) (speech.Cache, error) {
	switch {
	case cfg.RedisURL != "":
		c, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		log.Debug("Using redis audio cache")
		return c, nil
	case cfg.CacheDir != "":
		c, err := cache.NewFile(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		log.Debug("Using file audio cache", "dir", cfg.CacheDir)
		return c, nil
	default:
		return nil, nil
	}
}

// whisperLanguage maps a locale like "pt-BR" to whisper's "pt".
func whisperLanguage(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	if lang == "" {
		return "auto"
	}
	return strings.ToLower(lang)
}

// vocabulary lists the menu keywords so whisper leans towards them.
func vocabulary(m *menu.Menu) string {
	var words []string
	for _, o := range m.Options {
		words = append(words, o.Keywords...)
	}
	return strings.Join(words, ", ")
}
