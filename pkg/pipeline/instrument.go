package pipeline

import (
	"time"

	"github.com/symphovais/voicepipe/pkg/metrics"
)

// Outcome classifies a finished run for metric labels.
func Outcome(result *Result) string {
	switch {
	case result.Canceled:
		return metrics.OutcomeCanceled
	case result.IsSuccess:
		return metrics.OutcomeSuccess
	default:
		return metrics.OutcomeFailure
	}
}

// InstrumentConfig returns a copy of cfg with Prometheus collection chained
// onto its lifecycle callbacks. name becomes the "pipeline" label on every
// metric. A nil registry returns cfg unchanged.
func InstrumentConfig(cfg Config, name string, reg *metrics.Registry) Config {
	if reg == nil {
		return cfg
	}

	onRunStart := cfg.OnRunStart
	cfg.OnRunStart = func(runID string, stages int) {
		reg.PipelineActiveRuns.WithLabelValues(name).Inc()
		if onRunStart != nil {
			onRunStart(runID, stages)
		}
	}

	onRetry := cfg.OnRetry
	cfg.OnRetry = func(runID string, stage Stage, attempt int, wait time.Duration) {
		reg.StageRetries.WithLabelValues(name, stage.Name()).Inc()
		if onRetry != nil {
			onRetry(runID, stage, attempt, wait)
		}
	}

	onStageComplete := cfg.OnStageComplete
	cfg.OnStageComplete = func(runID string, result StageResult) {
		stage := result.Metrics.StageName
		reg.StageDuration.WithLabelValues(name, stage).Observe(result.Metrics.Duration().Seconds())
		if !result.IsSuccess {
			reg.StageFailures.WithLabelValues(name, stage).Inc()
		}
		if onStageComplete != nil {
			onStageComplete(runID, result)
		}
	}

	onRunComplete := cfg.OnRunComplete
	cfg.OnRunComplete = func(result *Result) {
		reg.PipelineActiveRuns.WithLabelValues(name).Dec()
		reg.PipelineRuns.WithLabelValues(name, Outcome(result)).Inc()
		reg.RunDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
		if onRunComplete != nil {
			onRunComplete(result)
		}
	}

	return cfg
}

// NewWithMetrics creates a pipeline reporting to the given metrics registry.
func NewWithMetrics(name string, reg *metrics.Registry, stages ...Stage) Pipeline {
	return NewWithConfig(InstrumentConfig(Config{}, name, reg), stages...)
}
