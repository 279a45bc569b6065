/*
Package voicepipe provides the execution engine behind a local dictation
service: validated audio in, cleaned transcript out.

Pipeline Engine (pkg/pipeline):
  - Ordered stages with per-stage retry budgets
  - Shared run context for data passing and cooperative cancellation
  - Structured per-stage metrics and cumulative statistics

Stock Stages (pkg/stages):
  - audiocheck: WAV validation, duration and silence gating
  - transcribe: speech-to-text upload with retry-aware errors
  - textclean: filler removal, spoken punctuation, capitalization

Daemon Building Blocks:
  - dictation: the assembled three-stage run (pkg/dictation)
  - guard: trigger rate limiting and run concurrency caps (pkg/guard)
  - runner: bounded worker pool executing queued runs (pkg/runner)
  - history: finished-run records in memory or Redis (pkg/history)
  - control: local HTTP trigger and status surface (pkg/control)
  - progress: non-blocking run progress reporting (pkg/progress)

Example usage:

	import (
		"github.com/symphovais/voicepipe/pkg/dictation"
		"github.com/symphovais/voicepipe/pkg/pipeline"
	)

	cfg := dictation.DefaultConfig()
	cfg.Transcribe.APIKey = key
	pipe, _ := dictation.New(cfg)

	run := pipeline.NewContext()
	run.Set(dictation.KeyAudio, wavBytes)

	result, err := pipe.Execute(ctx, run)
*/
package voicepipe
