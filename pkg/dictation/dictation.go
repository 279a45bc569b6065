// Package dictation assembles the standard voicepipe run: validate the
// captured audio, transcribe it, and clean the transcript for delivery.
//
// The stage packages under pkg/stages are independent; this package wires
// them together with matching context keys and a shared retry and metrics
// setup. Callers that need a different stage mix build their own pipeline
// from the pieces.
package dictation

import (
	"github.com/symphovais/voicepipe/pkg/metrics"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/stages/audiocheck"
	"github.com/symphovais/voicepipe/pkg/stages/textclean"
	"github.com/symphovais/voicepipe/pkg/stages/transcribe"
)

// Context keys shared by the stock stages. The stage defaults already line
// up with these; they are exported so callers and custom stages can read
// and write the same slots.
const (
	// KeyAudio holds the captured WAV buffer ([]byte).
	KeyAudio = "audio"

	// KeyAudioInfo holds the parsed audiocheck.Info.
	KeyAudioInfo = "audio.info"

	// KeyText holds the transcript (string), cleaned in place.
	KeyText = "text"

	// KeyRawText preserves the transcript as the service returned it.
	KeyRawText = "text.raw"
)

// PipelineName labels dictation runs in metrics.
const PipelineName = "dictation"

// Config holds configuration options for the assembled dictation pipeline.
type Config struct {
	// Audio configures the validation stage.
	Audio audiocheck.Config

	// Transcribe configures the speech-to-text stage. APIKey is required
	// unless Backend is set.
	Transcribe transcribe.Config

	// Backend overrides the transcription backend. Useful for tests and
	// for services other than the stock HTTP client.
	Backend transcribe.Backend

	// Clean configures the transcript cleanup stage.
	Clean textclean.Config

	// Pipeline carries lifecycle callbacks into the executor.
	Pipeline pipeline.Config

	// Metrics instruments runs when non-nil.
	Metrics *metrics.Registry
}

// DefaultConfig returns the default dictation configuration. The
// transcription APIKey must still be supplied.
func DefaultConfig() Config {
	return Config{
		Audio:      audiocheck.DefaultConfig(),
		Transcribe: transcribe.DefaultConfig(),
		Clean:      textclean.DefaultConfig(),
	}
}

// Stages builds the three stock stages in run order.
func Stages(config Config) ([]pipeline.Stage, error) {
	check, err := audiocheck.New(config.Audio)
	if err != nil {
		return nil, err
	}

	var stt pipeline.Stage
	if config.Backend != nil {
		stt, err = transcribe.NewWithBackend(config.Transcribe, config.Backend)
	} else {
		stt, err = transcribe.New(config.Transcribe)
	}
	if err != nil {
		return nil, err
	}

	clean, err := textclean.New(config.Clean)
	if err != nil {
		return nil, err
	}

	return []pipeline.Stage{check, stt, clean}, nil
}

// New assembles the dictation pipeline.
func New(config Config) (pipeline.Pipeline, error) {
	stages, err := Stages(config)
	if err != nil {
		return nil, err
	}

	cfg := pipeline.InstrumentConfig(config.Pipeline, PipelineName, config.Metrics)
	return pipeline.NewWithConfig(cfg, stages...), nil
}
