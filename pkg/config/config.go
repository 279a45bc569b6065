// Package config loads the voicepiped daemon configuration from a YAML
// file. Values missing from the file keep their defaults, so a minimal
// config only names what differs:
//
//	listen: 127.0.0.1:8090
//	transcriber:
//	  api_key: sk-...
//	  language: en
//	audio:
//	  min_duration: 500ms
//	history:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
	"github.com/symphovais/voicepipe/pkg/common/validation"
	"github.com/symphovais/voicepipe/pkg/dictation"
	"github.com/symphovais/voicepipe/pkg/guard"
	"github.com/symphovais/voicepipe/pkg/runner"
	"github.com/symphovais/voicepipe/pkg/stages/audiocheck"
	"github.com/symphovais/voicepipe/pkg/stages/textclean"
	"github.com/symphovais/voicepipe/pkg/stages/transcribe"
)

// EnvAPIKey is consulted when transcriber.api_key is absent from the file.
const EnvAPIKey = "OPENAI_API_KEY"

// Config is the daemon configuration.
type Config struct {
	// Listen is the control server address.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Transcriber TranscriberConfig `yaml:"transcriber"`
	Audio       AudioConfig       `yaml:"audio"`
	Clean       CleanConfig       `yaml:"clean"`
	Guard       GuardConfig       `yaml:"guard"`
	Runner      RunnerConfig      `yaml:"runner"`
	History     HistoryConfig     `yaml:"history"`
}

// TranscriberConfig configures the transcription stage.
type TranscriberConfig struct {
	Endpoint   string   `yaml:"endpoint"`
	Model      string   `yaml:"model"`
	APIKey     string   `yaml:"api_key"`
	Language   string   `yaml:"language"`
	Prompt     string   `yaml:"prompt"`
	Timeout    Duration `yaml:"timeout"`
	Retries    int      `yaml:"retries"`
	RetryDelay Duration `yaml:"retry_delay"`
}

// AudioConfig configures the audio validation stage.
type AudioConfig struct {
	MinDuration Duration `yaml:"min_duration"`
	MaxDuration Duration `yaml:"max_duration"`
	SilenceRMS  float64  `yaml:"silence_rms"`
}

// CleanConfig configures the transcript cleanup stage.
type CleanConfig struct {
	Fillers           []string `yaml:"fillers"`
	SpokenPunctuation bool     `yaml:"spoken_punctuation"`
	Capitalize        bool     `yaml:"capitalize"`
}

// GuardConfig configures trigger admission.
type GuardConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// RunnerConfig sizes the run worker pool.
type RunnerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// HistoryConfig selects and tunes the run history store.
type HistoryConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// Capacity bounds the memory backend.
	Capacity int `yaml:"capacity"`

	// Keep is how many records the retention sweep leaves behind.
	Keep int `yaml:"keep"`

	// Sweep is the retention schedule in cron syntax ("@hourly", "0 * * * *").
	Sweep string `yaml:"sweep"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig locates the Redis history backend.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`
}

// Defaults returns the configuration used when no file overrides it.
func Defaults() Config {
	transcriber := transcribe.DefaultConfig()
	audio := audiocheck.DefaultConfig()
	clean := textclean.DefaultConfig()
	admission := guard.DefaultConfig()
	pool := runner.DefaultConfig()

	return Config{
		Listen:   "127.0.0.1:8090",
		LogLevel: "info",
		Transcriber: TranscriberConfig{
			Endpoint:   transcriber.Endpoint,
			Model:      transcriber.Model,
			Timeout:    Duration(transcriber.Timeout),
			Retries:    transcriber.Retries,
			RetryDelay: Duration(transcriber.RetryDelay),
		},
		Audio: AudioConfig{
			MinDuration: Duration(audio.MinDuration),
			MaxDuration: Duration(audio.MaxDuration),
			SilenceRMS:  audio.SilenceRMS,
		},
		Clean: CleanConfig{
			SpokenPunctuation: clean.SpokenPunctuation,
			Capitalize:        clean.Capitalize,
		},
		Guard: GuardConfig{
			RatePerMinute: admission.RatePerMinute,
			Burst:         admission.Burst,
			MaxConcurrent: admission.MaxConcurrent,
		},
		Runner: RunnerConfig{
			Workers:   pool.Workers,
			QueueSize: pool.QueueSize,
		},
		History: HistoryConfig{
			Backend:  "memory",
			Capacity: 100,
			Keep:     500,
			Sweep:    "@hourly",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "voicepipe:history",
				TTL:    Duration(30 * 24 * time.Hour),
			},
		},
	}
}

// Load reads the YAML file at path over Defaults. An empty path returns
// Defaults unchanged. When no api_key is configured the EnvAPIKey
// environment variable fills it.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.Transcriber.APIKey == "" {
		cfg.Transcriber.APIKey = os.Getenv(EnvAPIKey)
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if err := validation.ValidateNotEmpty("config", "listen", c.Listen); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return vperrors.NewValidationError("config", "log_level", c.LogLevel, "unknown level").
			WithHint("use debug, info, warn or error")
	}

	if err := validation.ValidateNotEmpty("config", "transcriber.endpoint", c.Transcriber.Endpoint); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("config", "transcriber.model", c.Transcriber.Model); err != nil {
		return err
	}
	if c.Transcriber.Timeout < 0 {
		return vperrors.NewValidationError("config", "transcriber.timeout", c.Transcriber.Timeout.Duration(), "must not be negative")
	}
	if err := validation.ValidateNonNegativeInt("config", "transcriber.retries", c.Transcriber.Retries); err != nil {
		return err
	}
	if c.Transcriber.RetryDelay < 0 {
		return vperrors.NewValidationError("config", "transcriber.retry_delay", c.Transcriber.RetryDelay.Duration(), "must not be negative")
	}

	if c.Audio.MinDuration < 0 || c.Audio.MaxDuration < 0 {
		return vperrors.NewValidationError("config", "audio", nil, "durations must not be negative")
	}
	if err := validation.ValidateNonNegative("config", "audio.silence_rms", c.Audio.SilenceRMS); err != nil {
		return err
	}

	if err := validation.ValidateNonNegative("config", "guard.rate_per_minute", c.Guard.RatePerMinute); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("config", "guard.burst", c.Guard.Burst); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("config", "guard.max_concurrent", c.Guard.MaxConcurrent); err != nil {
		return err
	}

	if err := validation.ValidateNonNegativeInt("config", "runner.workers", c.Runner.Workers); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("config", "runner.queue_size", c.Runner.QueueSize); err != nil {
		return err
	}

	switch c.History.Backend {
	case "memory", "redis":
	default:
		return vperrors.NewValidationError("config", "history.backend", c.History.Backend, "unknown backend").
			WithHint("use memory or redis")
	}
	if err := validation.ValidateNonNegativeInt("config", "history.capacity", c.History.Capacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeInt("config", "history.keep", c.History.Keep); err != nil {
		return err
	}
	if c.History.Backend == "redis" {
		if err := validation.ValidateNotEmpty("config", "history.redis.addr", c.History.Redis.Addr); err != nil {
			return err
		}
		if c.History.Redis.TTL < 0 {
			return vperrors.NewValidationError("config", "history.redis.ttl", c.History.Redis.TTL.Duration(), "must not be negative")
		}
	}

	return nil
}

// DictationConfig maps the file onto the dictation pipeline configuration.
func (c Config) DictationConfig() dictation.Config {
	dc := dictation.DefaultConfig()

	dc.Audio.MinDuration = c.Audio.MinDuration.Duration()
	dc.Audio.MaxDuration = c.Audio.MaxDuration.Duration()
	dc.Audio.SilenceRMS = c.Audio.SilenceRMS

	dc.Transcribe.Endpoint = c.Transcriber.Endpoint
	dc.Transcribe.Model = c.Transcriber.Model
	dc.Transcribe.APIKey = c.Transcriber.APIKey
	dc.Transcribe.Language = c.Transcriber.Language
	dc.Transcribe.Prompt = c.Transcriber.Prompt
	dc.Transcribe.Timeout = c.Transcriber.Timeout.Duration()
	dc.Transcribe.Retries = c.Transcriber.Retries
	dc.Transcribe.RetryDelay = c.Transcriber.RetryDelay.Duration()

	dc.Clean.Fillers = c.Clean.Fillers
	dc.Clean.SpokenPunctuation = c.Clean.SpokenPunctuation
	dc.Clean.Capitalize = c.Clean.Capitalize

	return dc
}

// GuardConfig maps the file onto the admission guard configuration.
func (c Config) GuardConfig() guard.Config {
	return guard.Config{
		RatePerMinute: c.Guard.RatePerMinute,
		Burst:         c.Guard.Burst,
		MaxConcurrent: c.Guard.MaxConcurrent,
	}
}

// RunnerConfig maps the file onto the worker pool configuration.
func (c Config) RunnerConfig() runner.Config {
	return runner.Config{
		Workers:   c.Runner.Workers,
		QueueSize: c.Runner.QueueSize,
	}
}
