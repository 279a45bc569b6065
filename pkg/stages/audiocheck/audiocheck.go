// Package audiocheck validates captured audio before it is sent for
// transcription. It parses the WAV buffer from the run context, rejects
// clips that are too short, too long, or effectively silent, and publishes
// the parsed parameters for downstream stages.
package audiocheck

import (
	"context"
	"fmt"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
	"github.com/symphovais/voicepipe/pkg/common/validation"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/progress"
)

// Config holds configuration options for the audio check stage.
type Config struct {
	// InputKey is the context key holding the captured WAV buffer.
	// Default: "audio"
	InputKey string

	// InfoKey is the context key the parsed Info is written under.
	// Default: "audio.info"
	InfoKey string

	// MinDuration rejects clips shorter than this. Zero disables the check.
	// Default: 300ms
	MinDuration time.Duration

	// MaxDuration rejects clips longer than this. Zero disables the check.
	// Default: 5m
	MaxDuration time.Duration

	// SilenceRMS rejects 16-bit PCM clips whose normalized RMS level falls
	// below this threshold. Zero disables the check.
	// Default: 0.01
	SilenceRMS float64
}

// DefaultConfig returns the default audio check configuration.
func DefaultConfig() Config {
	return Config{
		InputKey:    "audio",
		InfoKey:     "audio.info",
		MinDuration: 300 * time.Millisecond,
		MaxDuration: 5 * time.Minute,
		SilenceRMS:  0.01,
	}
}

// Check is the validation stage. It is pure and deterministic, so it
// declares no retries.
type Check struct {
	pipeline.Meta
	config Config
}

// New creates an audio check stage. Empty keys fall back to the defaults.
func New(config Config) (*Check, error) {
	def := DefaultConfig()
	if config.InputKey == "" {
		config.InputKey = def.InputKey
	}
	if config.InfoKey == "" {
		config.InfoKey = def.InfoKey
	}

	if config.MinDuration < 0 {
		return nil, vperrors.NewValidationError("audiocheck", "MinDuration", config.MinDuration, "duration must not be negative").
			WithHint("use 0 to disable the minimum length check")
	}
	if config.MaxDuration < 0 {
		return nil, vperrors.NewValidationError("audiocheck", "MaxDuration", config.MaxDuration, "duration must not be negative").
			WithHint("use 0 to disable the maximum length check")
	}
	if config.MaxDuration != 0 && config.MinDuration > config.MaxDuration {
		return nil, vperrors.NewValidationError("audiocheck", "MaxDuration", config.MaxDuration, "must not be below MinDuration")
	}
	if err := validation.ValidateNonNegative("audiocheck", "SilenceRMS", config.SilenceRMS); err != nil {
		return nil, err
	}

	return &Check{
		Meta: pipeline.Meta{
			StageName: "audiocheck",
			StageType: "validation",
		},
		config: config,
	}, nil
}

// Execute implements the pipeline.Stage interface.
func (c *Check) Execute(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
	audio, ok := pipeline.Data[[]byte](run, c.config.InputKey)
	if !ok {
		return pipeline.Failuref("no audio data under key %q", c.config.InputKey)
	}
	if len(audio) == 0 {
		return pipeline.Failure("captured audio buffer is empty")
	}

	info, err := Parse(audio)
	if err != nil {
		return pipeline.FromError(err)
	}

	result := pipeline.Success().
		WithMetric("bytes", len(audio)).
		WithMetric("duration_ms", info.Duration.Milliseconds()).
		WithMetric("sample_rate", info.SampleRate).
		WithMetric("channels", info.Channels).
		WithMetric("rms", info.RMS)

	if c.config.MinDuration > 0 && info.Duration < c.config.MinDuration {
		return failWithMetrics(result, "audio too short: %v < %v", info.Duration, c.config.MinDuration)
	}
	if c.config.MaxDuration > 0 && info.Duration > c.config.MaxDuration {
		return failWithMetrics(result, "audio too long: %v > %v", info.Duration, c.config.MaxDuration)
	}
	if c.config.SilenceRMS > 0 && info.BitsPerSample == 16 && info.RMS < c.config.SilenceRMS {
		return failWithMetrics(result, "audio appears silent: rms %.4f below %.4f", info.RMS, c.config.SilenceRMS)
	}

	run.Set(c.config.InfoKey, info)
	run.Publish(progress.Event{
		Stage:   c.Name(),
		Message: fmt.Sprintf("audio ok: %v at %d Hz", info.Duration.Round(time.Millisecond), info.SampleRate),
		Percent: -1,
	})
	return result
}

// failWithMetrics converts an already-measured success into a failure while
// keeping the collected measurements.
func failWithMetrics(r pipeline.StageResult, format string, args ...interface{}) pipeline.StageResult {
	f := pipeline.Failuref(format, args...)
	f.Metrics = r.Metrics
	return f
}
