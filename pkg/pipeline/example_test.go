package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/symphovais/voicepipe/pkg/progress"
)

// Example demonstrates basic pipeline usage with data flowing through the
// shared run context.
func Example() {
	p := New()

	p.AddFunc("uppercase", func(_ context.Context, run *Context) StageResult {
		text, ok := Data[string](run, "text")
		if !ok {
			return Failure("missing text input")
		}
		run.Set("text", strings.ToUpper(text))
		return Success()
	})

	p.AddFunc("prefix", func(_ context.Context, run *Context) StageResult {
		text, _ := Data[string](run, "text")
		run.Set("text", "PROCESSED: "+text)
		return Success()
	})

	run := NewContext()
	run.Set("text", "hello world")

	result, err := p.Execute(context.Background(), run)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	output, _ := Data[string](run, "text")
	fmt.Printf("Output: %s\n", output)
	fmt.Printf("Stages: %d\n", result.Metrics.Len())

	// Output:
	// Output: PROCESSED: HELLO WORLD
	// Stages: 2
}

// Example_retry demonstrates per-stage retry policy.
func Example_retry() {
	attempts := 0
	stage := NewFuncWithMeta(Meta{StageName: "flaky", Retries: 2}, func(_ context.Context, run *Context) StageResult {
		attempts++
		if attempts < 3 {
			return Failuref("attempt %d failed", attempts)
		}
		return Success()
	})

	result, err := New(stage).Execute(context.Background(), NewContext())

	fmt.Printf("Attempts: %d\n", attempts)
	fmt.Printf("Success: %v, err: %v\n", result.IsSuccess, err)

	// Output:
	// Attempts: 3
	// Success: true, err: <nil>
}

// Example_cancellation demonstrates cooperative cancellation.
func Example_cancellation() {
	p := New(
		NewFunc("first", func(_ context.Context, run *Context) StageResult {
			run.Cancel() // e.g. the user pressed stop
			return Success()
		}),
		NewFunc("second", func(_ context.Context, run *Context) StageResult {
			fmt.Println("never reached")
			return Success()
		}),
	)

	result, err := p.Execute(context.Background(), NewContext())

	fmt.Printf("Canceled: %v\n", result.Canceled)
	fmt.Printf("Is ErrCanceled: %v\n", errors.Is(err, ErrCanceled))
	fmt.Printf("Message: %s\n", result.ErrorMessage)

	// Output:
	// Canceled: true
	// Is ErrCanceled: true
	// Message: pipeline run canceled before stage "second"
}

// Example_progress demonstrates observing a run through a progress sink.
func Example_progress() {
	sink := progress.Func(func(e progress.Event) {
		fmt.Printf("%s: %s (%d%%)\n", e.Stage, e.Message, e.Percent)
	})

	p := New(
		NewFunc("capture", func(_ context.Context, run *Context) StageResult {
			return Success()
		}),
		NewFunc("transcribe", func(_ context.Context, run *Context) StageResult {
			return Success()
		}),
	)

	run := NewContext().SetSink(sink)
	_, _ = p.Execute(context.Background(), run)

	// Output:
	// capture: completed (50%)
	// transcribe: completed (100%)
}

// Example_customMetrics demonstrates attaching measurements to a stage
// result and reading them back.
func Example_customMetrics() {
	stage := NewFunc("transcribe", func(_ context.Context, run *Context) StageResult {
		return Success().
			WithMetric("words", 42).
			WithMetric("model", "whisper-1")
	})

	result, _ := New(stage).Execute(context.Background(), NewContext())

	sm := result.Metrics.Stages()[0]
	words, _ := Metric[int](sm, "words")
	model, _ := Metric[string](sm, "model")

	fmt.Printf("Stage: %s\n", sm.StageName)
	fmt.Printf("Words: %d, model: %s\n", words, model)

	// Output:
	// Stage: transcribe
	// Words: 42, model: whisper-1
}
