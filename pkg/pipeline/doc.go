/*
Package pipeline provides a linear stage executor with per-stage retry,
cooperative cancellation, structured metrics, and progress reporting.

Stages run strictly in list order against one shared run context. Stages
are independent and swappable: they communicate exclusively through the
context's key/value data, never through each other.

# Quick Start

	p := pipeline.New()

	p.AddFunc("validate", func(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
		audio, ok := pipeline.Data[[]byte](run, "audio")
		if !ok {
			return pipeline.Failure("no audio captured")
		}
		run.Set("audio.size", len(audio))
		return pipeline.Success()
	})

	p.AddFunc("transcribe", func(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
		run.Set("text", "hello world")
		return pipeline.Success().WithMetric("words", 2)
	})

	run := pipeline.NewContext()
	run.Set("audio", capturedBytes)

	result, err := p.Execute(context.Background(), run)
	fmt.Printf("success=%v stages=%d\n", result.IsSuccess, result.Metrics.Len())

# Stages

A stage is anything implementing the Stage interface. Embed Meta to get
the descriptive methods and retry policy for free:

	type TranscribeStage struct {
		pipeline.Meta
		client *http.Client
	}

	func (s *TranscribeStage) Execute(ctx context.Context, run *pipeline.Context) pipeline.StageResult {
		// Long-running work should honor ctx for mid-stage cancellation.
		return pipeline.Success()
	}

	stage := &TranscribeStage{Meta: pipeline.Meta{
		StageName: "transcribe",
		StageType: "network",
		Retries:   2,
		Delay:     time.Second,
	}}

Stages may be re-invoked under retry, so they must be idempotent-safe.

# Retry

A stage declares its own policy: RetryCount is the number of additional
attempts after a failed first attempt, so RetryCount=2 means at most three
invocations. RetryDelay is a fixed wait between attempts; zero or negative
means immediate re-attempt. Backoff with jitter, when a stage needs it,
belongs inside that stage's implementation.

Exactly one StageMetrics entry is recorded per completed stage: the final
attempt, whether it succeeded or exhausted its retries.

# Cancellation

Cancellation is cooperative, not preemptive. After run.Cancel() the
executor will not start another stage or retry attempt, but a stage
already mid-execution keeps running unless it polls run.Canceled(),
selects on run.Done(), or propagates ctx into its own I/O.

A canceled run is distinct from a failed one: Result.Canceled is true,
the error message starts with CanceledMessage, and Result.Err() satisfies
errors.Is(err, ErrCanceled):

	result, err := p.Execute(ctx, run)
	switch {
	case errors.Is(err, pipeline.ErrCanceled):
		// The user stopped the run.
	case errors.Is(err, pipeline.ErrStageFailed):
		log.Printf("stage %s failed: %s", result.FailedStage, result.ErrorMessage)
	}

An external deadline works the same way: pass a context with a timeout to
Execute, or build the run with NewContextFrom(parent).

# Failure Semantics

The pipeline stops at the first stage that exhausts its retries. A panic
inside a stage is caught at the executor boundary and converted into a
failing StageResult carrying the panic message, so no stage can crash the
host process. Result.Metrics always holds everything collected up to the
point of termination, so callers can show what ran, what failed, and how
long each step took.

A pipeline with zero stages is a valid, trivially successful run.

# Progress

Attach a progress sink to the run context to observe execution:

	sink := progress.NewChannel(16)
	run := pipeline.NewContext().SetSink(sink)

The executor publishes one event per completed stage, in execution order.
Stages may publish finer-grained events themselves through run.Publish.
Events never affect control flow and are dropped when nobody listens.

# Callbacks and Metrics

Config carries optional lifecycle callbacks, invoked synchronously from
the run's goroutine:

	p := pipeline.NewWithConfig(pipeline.Config{
		OnRetry: func(runID string, stage pipeline.Stage, attempt int, wait time.Duration) {
			log.Printf("retrying %s after attempt %d", stage.Name(), attempt)
		},
	}, stages...)

NewWithMetrics chains Prometheus collection onto those callbacks:

	p := pipeline.NewWithMetrics("dictation", metrics.DefaultRegistry, stages...)

# Statistics

	stats := p.Stats()
	fmt.Printf("runs=%d ok=%d failed=%d canceled=%d\n",
		stats.TotalRuns, stats.SuccessfulRuns, stats.FailedRuns, stats.CanceledRuns)

# Thread Safety

A Pipeline may execute many runs concurrently as long as each run owns its
own Context. Within one run, execution is strictly sequential: a stage
always observes every prior stage's context writes.

See the example tests for more patterns.
*/
package pipeline
