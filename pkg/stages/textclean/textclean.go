// Package textclean normalizes raw transcripts for delivery. It strips
// hesitation fillers, converts spoken punctuation commands into marks,
// fixes capitalization, and collapses whitespace. The original transcript
// is preserved in the run context before cleaning.
package textclean

import (
	"context"
	"fmt"

	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/progress"
)

// Stage runs the cleanup passes over the transcript in the run context.
type Stage struct {
	pipeline.Meta
	cleaner *Cleaner
}

// New creates a text cleanup stage. The stage is pure and deterministic,
// so it declares no retries.
func New(config Config) (*Stage, error) {
	cleaner, err := NewCleaner(config)
	if err != nil {
		return nil, err
	}
	return &Stage{
		Meta: pipeline.Meta{
			StageName: "textclean",
			StageType: "transform",
		},
		cleaner: cleaner,
	}, nil
}

// Execute implements the pipeline.Stage interface.
func (s *Stage) Execute(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
	text, ok := pipeline.Data[string](run, s.cleaner.config.InputKey)
	if !ok {
		return pipeline.Failuref("no transcript under key %q", s.cleaner.config.InputKey)
	}

	cleaned, stats := s.cleaner.Clean(text)

	run.Set(s.cleaner.config.RawKey, text)
	run.Set(s.cleaner.config.OutputKey, cleaned)

	run.Publish(progress.Event{
		Stage:   s.Name(),
		Message: fmt.Sprintf("cleaned transcript: %d words", stats.WordsOut),
		Percent: -1,
	})

	return pipeline.Success().
		WithMetric("chars_in", len(text)).
		WithMetric("chars_out", len(cleaned)).
		WithMetric("words_out", stats.WordsOut).
		WithMetric("fillers_removed", stats.FillersRemoved).
		WithMetric("punctuation_applied", stats.PunctuationApplied)
}
