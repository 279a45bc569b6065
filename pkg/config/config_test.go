package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/symphovais/voicepipe/internal/testutil"
	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicepipe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	testutil.AssertEqual(t, cfg.Listen, "127.0.0.1:8090")
	testutil.AssertEqual(t, cfg.LogLevel, "info")
	testutil.AssertEqual(t, cfg.Transcriber.Model, "whisper-1")
	testutil.AssertEqual(t, cfg.Transcriber.Timeout.Duration(), 60*time.Second)
	testutil.AssertEqual(t, cfg.Audio.MinDuration.Duration(), 300*time.Millisecond)
	testutil.AssertEqual(t, cfg.Clean.SpokenPunctuation, true)
	testutil.AssertEqual(t, cfg.Clean.Capitalize, true)
	testutil.AssertEqual(t, cfg.Guard.MaxConcurrent, 2)
	testutil.AssertEqual(t, cfg.Runner.Workers, 2)
	testutil.AssertEqual(t, cfg.History.Backend, "memory")
	testutil.AssertEqual(t, cfg.History.Sweep, "@hourly")
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	cfg, err := Load("")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.Listen, Defaults().Listen)
	testutil.AssertEqual(t, cfg.Transcriber.APIKey, "")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "read config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	path := writeConfig(t, `
listen: 127.0.0.1:9999
log_level: debug
transcriber:
  api_key: sk-test
  language: en
  retries: 4
audio:
  min_duration: 500ms
clean:
  capitalize: false
runner:
  workers: 4
history:
  backend: redis
  redis:
    addr: redis.local:6379
`)
	cfg, err := Load(path)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, cfg.Listen, "127.0.0.1:9999")
	testutil.AssertEqual(t, cfg.LogLevel, "debug")
	testutil.AssertEqual(t, cfg.Transcriber.APIKey, "sk-test")
	testutil.AssertEqual(t, cfg.Transcriber.Language, "en")
	testutil.AssertEqual(t, cfg.Transcriber.Retries, 4)
	testutil.AssertEqual(t, cfg.Audio.MinDuration.Duration(), 500*time.Millisecond)
	testutil.AssertEqual(t, cfg.Clean.Capitalize, false)
	testutil.AssertEqual(t, cfg.Runner.Workers, 4)
	testutil.AssertEqual(t, cfg.History.Backend, "redis")
	testutil.AssertEqual(t, cfg.History.Redis.Addr, "redis.local:6379")

	// Untouched keys keep their defaults.
	testutil.AssertEqual(t, cfg.Transcriber.Model, "whisper-1")
	testutil.AssertEqual(t, cfg.Clean.SpokenPunctuation, true)
	testutil.AssertEqual(t, cfg.History.Redis.Prefix, "voicepipe:history")
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-env")

	cfg, err := Load("")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.Transcriber.APIKey, "sk-env")

	// An explicit key wins over the environment.
	path := writeConfig(t, "transcriber:\n  api_key: sk-file\n")
	cfg, err = Load(path)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, cfg.Transcriber.APIKey, "sk-file")
}

func TestLoadParseError(t *testing.T) {
	path := writeConfig(t, "listen: [not\n")
	_, err := Load(path)
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "audio:\n  min_duration: fast\n")
	_, err := Load(path)
	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), `duration "fast"`) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadEmptyFillerListDisablesRemoval(t *testing.T) {
	path := writeConfig(t, "clean:\n  fillers: []\n")
	cfg, err := Load(path)
	testutil.AssertNoError(t, err)

	if cfg.Clean.Fillers == nil {
		t.Fatal("an explicit empty list must stay non-nil")
	}
	testutil.AssertEqual(t, len(cfg.Clean.Fillers), 0)
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	testutil.AssertNoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"empty endpoint", func(c *Config) { c.Transcriber.Endpoint = "" }},
		{"negative retries", func(c *Config) { c.Transcriber.Retries = -1 }},
		{"negative timeout", func(c *Config) { c.Transcriber.Timeout = Duration(-time.Second) }},
		{"negative min duration", func(c *Config) { c.Audio.MinDuration = Duration(-time.Second) }},
		{"negative rate", func(c *Config) { c.Guard.RatePerMinute = -1 }},
		{"negative workers", func(c *Config) { c.Runner.Workers = -1 }},
		{"bad backend", func(c *Config) { c.History.Backend = "postgres" }},
		{"redis without addr", func(c *Config) {
			c.History.Backend = "redis"
			c.History.Redis.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			testutil.AssertError(t, err)
			if !vperrors.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDictationConfigBridge(t *testing.T) {
	cfg := Defaults()
	cfg.Transcriber.APIKey = "sk-test"
	cfg.Transcriber.Language = "en"
	cfg.Audio.MinDuration = Duration(750 * time.Millisecond)
	cfg.Clean.Capitalize = false

	dc := cfg.DictationConfig()
	testutil.AssertEqual(t, dc.Transcribe.APIKey, "sk-test")
	testutil.AssertEqual(t, dc.Transcribe.Language, "en")
	testutil.AssertEqual(t, dc.Transcribe.Model, "whisper-1")
	testutil.AssertEqual(t, dc.Audio.MinDuration, 750*time.Millisecond)
	testutil.AssertEqual(t, dc.Clean.Capitalize, false)
	testutil.AssertEqual(t, dc.Clean.SpokenPunctuation, true)
}

func TestGuardAndRunnerBridges(t *testing.T) {
	cfg := Defaults()
	cfg.Guard.RatePerMinute = 12
	cfg.Guard.MaxConcurrent = 3
	cfg.Runner.Workers = 5
	cfg.Runner.QueueSize = 16

	gc := cfg.GuardConfig()
	testutil.AssertEqual(t, gc.RatePerMinute, float64(12))
	testutil.AssertEqual(t, gc.MaxConcurrent, 3)

	rc := cfg.RunnerConfig()
	testutil.AssertEqual(t, rc.Workers, 5)
	testutil.AssertEqual(t, rc.QueueSize, 16)
}
