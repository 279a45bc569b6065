package pipeline

import (
	"context"
	"time"
)

// Stage represents a single named, retryable unit of pipeline work.
type Stage interface {
	// Execute runs the stage against the shared run context. ctx carries
	// the run's cancellation signal and should be propagated into any I/O
	// the stage performs. Execute may be invoked multiple times within one
	// run under retry, so implementations must be safe to re-invoke.
	Execute(ctx context.Context, run *Context) StageResult

	// Name returns a human-readable identifier used in metrics and error
	// messages. Names need not be unique within a pipeline.
	Name() string

	// Type returns a free-form category tag for observability.
	Type() string

	// RetryCount returns the number of additional attempts after a failed
	// first attempt. Zero means exactly one attempt.
	RetryCount() int

	// RetryDelay returns the fixed wait between attempts. Zero or negative
	// means immediate re-attempt.
	RetryDelay() time.Duration
}

// Meta carries a stage's descriptive fields and retry policy. Embed it in
// a stage implementation to satisfy everything but Execute.
type Meta struct {
	StageName string
	StageType string
	Retries   int
	Delay     time.Duration
}

// Name returns the stage name.
func (m Meta) Name() string {
	return m.StageName
}

// Type returns the stage's category tag, defaulting to "generic".
func (m Meta) Type() string {
	if m.StageType == "" {
		return "generic"
	}
	return m.StageType
}

// RetryCount returns the number of additional attempts after a failure.
func (m Meta) RetryCount() int {
	return m.Retries
}

// RetryDelay returns the fixed wait between attempts.
func (m Meta) RetryDelay() time.Duration {
	return m.Delay
}

// Func is a function type that implements the Stage interface.
type Func struct {
	Meta
	fn func(ctx context.Context, run *Context) StageResult
}

// NewFunc creates a stage from a function with no retries.
func NewFunc(name string, fn func(ctx context.Context, run *Context) StageResult) Stage {
	return NewFuncWithMeta(Meta{StageName: name}, fn)
}

// NewFuncWithMeta creates a stage from a function with explicit metadata
// and retry policy.
func NewFuncWithMeta(meta Meta, fn func(ctx context.Context, run *Context) StageResult) Stage {
	return &Func{Meta: meta, fn: fn}
}

// Execute implements the Stage interface for Func.
func (f *Func) Execute(ctx context.Context, run *Context) StageResult {
	return f.fn(ctx, run)
}
