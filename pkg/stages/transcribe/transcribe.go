// Package transcribe turns captured audio into text by calling an
// OpenAI-compatible speech-to-text service. The stage declares a retry
// policy because the network round trip is the flakiest part of a
// dictation run.
package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/progress"
)

// Backend performs the actual speech-to-text call. Client implements it;
// tests substitute their own.
type Backend interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Stage uploads the run's audio buffer and stores the transcript in the
// run context.
type Stage struct {
	pipeline.Meta
	config  Config
	backend Backend
}

// New creates a transcription stage backed by an HTTP client built from
// the config.
func New(config Config) (*Stage, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(config, client)
}

// NewWithBackend creates a transcription stage around a caller-supplied
// backend. The config's HTTP fields are ignored.
func NewWithBackend(config Config, backend Backend) (*Stage, error) {
	config = config.withDefaults()

	if backend == nil {
		return nil, vperrors.NewValidationError("transcribe", "backend", nil, "backend must not be nil")
	}
	if config.Retries < 0 {
		return nil, vperrors.NewValidationError("transcribe", "Retries", config.Retries, "must not be negative").
			WithHint("use 0 to disable retries")
	}
	if config.RetryDelay < 0 {
		return nil, vperrors.NewValidationError("transcribe", "RetryDelay", config.RetryDelay, "duration must not be negative")
	}

	return &Stage{
		Meta: pipeline.Meta{
			StageName: "transcribe",
			StageType: "network",
			Retries:   config.Retries,
			Delay:     config.RetryDelay,
		},
		config:  config,
		backend: backend,
	}, nil
}

// Execute implements the pipeline.Stage interface.
func (s *Stage) Execute(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
	audio, ok := pipeline.Data[[]byte](run, s.config.InputKey)
	if !ok {
		return pipeline.Failuref("no audio data under key %q", s.config.InputKey)
	}
	if len(audio) == 0 {
		return pipeline.Failure("audio buffer is empty")
	}

	run.Publish(progress.Event{
		Stage:   s.Name(),
		Message: fmt.Sprintf("uploading %d bytes of audio", len(audio)),
		Percent: -1,
	})

	start := time.Now()
	text, err := s.backend.Transcribe(ctx, audio)
	if err != nil {
		return pipeline.FromError(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return pipeline.Failure("transcription service returned no text")
	}

	run.Set(s.config.OutputKey, text)
	words := len(strings.Fields(text))
	run.Publish(progress.Event{
		Stage:   s.Name(),
		Message: fmt.Sprintf("transcribed %d words", words),
		Percent: -1,
	})

	return pipeline.Success().
		WithMetric("bytes_sent", len(audio)).
		WithMetric("words", words).
		WithMetric("chars", len(text)).
		WithMetric("request_ms", time.Since(start).Milliseconds()).
		WithMetric("model", s.config.Model)
}
