package config

import (
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"ivr/internal/menu"
)

const (
	EngineAzure = "azure"
	EngineLocal = "local"
)

// Config holds runtime configuration for the IVR.
// Precedence: CLI flags > environment > .env file > defaults.
type Config struct {
	EnvFile  string
	LogLevel string

	MenuFile      string
	Strategy      string
	MaxAttempts   int
	ListenTimeout time.Duration

	Engine      string
	AzureKey    string
	AzureRegion string
	Voice       string
	Language    string
	Proxy       string

	WhisperModel string
	EspeakVoice  string

	CacheDir string
	RedisURL string
	CacheTTL time.Duration

	CueFile          string
	SilenceThreshold float64
	SilenceDuration  time.Duration
	MaxUtterance     time.Duration

	BusURL      string
	MetricsAddr string
}

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

const envPrefix = "IVR_"

// envNames maps flags to the environment variables that may set them. The
// Azure credentials keep the names the speech SDK samples use.
var envNames = map[string]string{
	"log":               envPrefix + "LOG_LEVEL",
	"menu":              envPrefix + "MENU",
	"strategy":          envPrefix + "STRATEGY",
	"max-attempts":      envPrefix + "MAX_ATTEMPTS",
	"listen-timeout":    envPrefix + "LISTEN_TIMEOUT",
	"engine":            envPrefix + "ENGINE",
	"azure-key":         "AZURE_SPEECH_KEY",
	"azure-region":      "AZURE_SPEECH_REGION",
	"voice":             envPrefix + "VOICE",
	"language":          envPrefix + "LANGUAGE",
	"proxy":             envPrefix + "PROXY",
	"whisper-model":     envPrefix + "WHISPER_MODEL",
	"espeak-voice":      envPrefix + "ESPEAK_VOICE",
	"cache-dir":         envPrefix + "CACHE_DIR",
	"redis-url":         envPrefix + "REDIS_URL",
	"cache-ttl":         envPrefix + "CACHE_TTL",
	"cue":               envPrefix + "CUE",
	"silence-threshold": envPrefix + "SILENCE_THRESHOLD",
	"silence-duration":  envPrefix + "SILENCE_DURATION",
	"max-utterance":     envPrefix + "MAX_UTTERANCE",
	"bus-url":           envPrefix + "BUS_URL",
	"metrics-addr":      envPrefix + "METRICS_ADDR",
}

// Load parses args (without the program name).
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	flags := cli.NewFlagSet("ivr", cli.ContinueOnError)

	flags.StringVarP(&cfg.EnvFile, "env", "e", ".env", "Env file path")
	flags.StringVarP(&cfg.LogLevel, "log", "l", "info", "Log level (debug, info, warn, error)")

	flags.StringVarP(&cfg.MenuFile, "menu", "m", "", "JSON menu file (built-in Quantm Finance menu if empty)")
	flags.StringVar(&cfg.Strategy, "strategy", "first", "Keyword match strategy (first, longest, most)")
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", 3, "Consecutive unrecognized turns before giving up (0 = never)")
	flags.DurationVar(&cfg.ListenTimeout, "listen-timeout", 15*time.Second, "Upper bound for one listen (0 = none)")

	flags.StringVar(&cfg.Engine, "engine", EngineAzure, "Speech engine (azure, local)")
	flags.StringVar(&cfg.AzureKey, "azure-key", "", "Azure Speech subscription key")
	flags.StringVar(&cfg.AzureRegion, "azure-region", "", "Azure Speech region")
	flags.StringVar(&cfg.Voice, "voice", "pt-BR-LeticiaNeural", "Azure synthesis voice")
	flags.StringVar(&cfg.Language, "language", "pt-BR", "Recognition locale")
	flags.StringVarP(&cfg.Proxy, "proxy", "p", "", "SOCKS5 proxy address for the speech service")

	flags.StringVar(&cfg.WhisperModel, "whisper-model", "third_party/whisper.cpp/models/ggml-medium.bin", "whisper.cpp model (local engine)")
	flags.StringVar(&cfg.EspeakVoice, "espeak-voice", "pt-br", "espeak-ng voice (local engine)")

	flags.StringVar(&cfg.CacheDir, "cache-dir", "audio_files", "Directory for cached prompt audio (empty disables)")
	flags.StringVar(&cfg.RedisURL, "redis-url", "", "Redis URL for a shared prompt audio cache")
	flags.DurationVar(&cfg.CacheTTL, "cache-ttl", 0, "Expiry of redis cached audio (0 = never)")

	flags.StringVar(&cfg.CueFile, "cue", "", "Audio file played before each listen")
	flags.Float64Var(&cfg.SilenceThreshold, "silence-threshold", 0.015, "Frame RMS that counts as speech")
	flags.DurationVar(&cfg.SilenceDuration, "silence-duration", 800*time.Millisecond, "Trailing silence that ends an utterance")
	flags.DurationVar(&cfg.MaxUtterance, "max-utterance", 10*time.Second, "Longest single utterance")

	flags.StringVarP(&cfg.BusURL, "bus-url", "b", "", "Websocket hub receiving dialogue events")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Address serving /metrics (disabled if empty)")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", cfg.EnvFile, err)
	}

	if err := applyEnv(flags); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv sets every flag not given on the command line from its
// environment variable. A variable set to the empty string clears a string
// flag (IVR_CACHE_DIR= turns the file cache off) and is ignored otherwise.
func applyEnv(flags *cli.FlagSet) error {
	for flag, env := range envNames {
		if flags.Changed(flag) {
			continue
		}
		val, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		if val == "" && flags.Lookup(flag).Value.Type() != "string" {
			continue
		}
		if err := flags.Set(flag, val); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if _, ok := LogLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if _, err := menu.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max-attempts must be >= 0, got %d", c.MaxAttempts)
	}
	if c.ListenTimeout < 0 {
		return fmt.Errorf("listen-timeout must be >= 0, got %s", c.ListenTimeout)
	}

	switch c.Engine {
	case EngineAzure:
		if c.AzureKey == "" || c.AzureRegion == "" {
			return errors.New("azure engine needs AZURE_SPEECH_KEY and AZURE_SPEECH_REGION")
		}
	case EngineLocal:
		if c.WhisperModel == "" {
			return errors.New("local engine needs a whisper model")
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}

	return nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() log.Level {
	return LogLevels[strings.ToLower(c.LogLevel)]
}
