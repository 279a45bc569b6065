package pipeline

import (
	"fmt"
	"time"
)

// StageResult represents the outcome of one stage execution attempt.
type StageResult struct {
	// IsSuccess reports whether the stage completed its work.
	IsSuccess bool

	// ErrorMessage describes what went wrong. Present iff the stage failed.
	ErrorMessage string

	// Metrics holds timing and custom measurements for this attempt. The
	// executor guarantees a non-nil Metrics with valid start and end times
	// on every result it surfaces, even when the stage itself left it nil.
	Metrics *StageMetrics
}

// Success returns a successful stage result.
func Success() StageResult {
	return StageResult{IsSuccess: true}
}

// Failure returns a failing stage result with the given message.
func Failure(message string) StageResult {
	return StageResult{ErrorMessage: message}
}

// Failuref returns a failing stage result with a formatted message.
func Failuref(format string, args ...interface{}) StageResult {
	return Failure(fmt.Sprintf(format, args...))
}

// FromError converts an error into a stage result: nil becomes a success,
// anything else a failure carrying the error's message.
func FromError(err error) StageResult {
	if err == nil {
		return Success()
	}
	return Failure(err.Error())
}

// WithMetric records a named custom measurement on the result's metrics,
// creating the metrics object when needed. Returns the result for chaining:
//
//	return pipeline.Success().
//		WithMetric("words", 42).
//		WithMetric("model", "whisper-1")
func (r StageResult) WithMetric(name string, value interface{}) StageResult {
	if r.Metrics == nil {
		r.Metrics = &StageMetrics{}
	}
	r.Metrics.Set(name, value)
	return r
}

// Result represents the outcome of one complete pipeline run. It is
// produced exactly once per execution and must not be mutated afterwards.
type Result struct {
	// RunID identifies the run this result belongs to.
	RunID string

	// IsSuccess reports whether every stage completed successfully.
	IsSuccess bool

	// ErrorMessage is the failing stage's message, or a cancellation
	// message when the run was canceled. Empty on success.
	ErrorMessage string

	// Canceled distinguishes cooperative cancellation from stage failure.
	Canceled bool

	// FailedStage names the stage whose failure terminated the run. Empty
	// on success and on cancellation.
	FailedStage string

	// Metrics holds one StageMetrics per completed stage, in execution
	// order, up to the point of termination.
	Metrics *PipelineMetrics

	// StartTime is when the run began.
	StartTime time.Time

	// EndTime is when the run finished.
	EndTime time.Time

	// Duration is the total wall-clock execution time.
	Duration time.Duration

	err error
}

// Err returns the terminal error for failed or canceled runs, nil on
// success. Cancellation satisfies errors.Is(err, ErrCanceled); a stage
// failure satisfies errors.Is(err, ErrStageFailed), so callers can branch
// on "did I cancel this" versus "did a stage actually fail".
func (r *Result) Err() error {
	return r.err
}
