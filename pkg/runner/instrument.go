package runner

import (
	"github.com/symphovais/voicepipe/pkg/metrics"
	"github.com/symphovais/voicepipe/pkg/pipeline"
)

// InstrumentConfig returns a copy of config with Prometheus collection
// chained onto its lifecycle callbacks. pool becomes the "pool" label on
// every metric. A nil registry returns config unchanged.
func InstrumentConfig(config Config, pool string, reg *metrics.Registry) Config {
	if reg == nil {
		return config
	}

	onQueued := config.OnRunQueued
	config.OnRunQueued = func(sub *Submission) {
		reg.RunnerQueued.WithLabelValues(pool).Inc()
		if onQueued != nil {
			onQueued(sub)
		}
	}

	onStart := config.OnRunStart
	config.OnRunStart = func(sub *Submission) {
		reg.RunnerQueued.WithLabelValues(pool).Dec()
		reg.RunnerActive.WithLabelValues(pool).Inc()
		if onStart != nil {
			onStart(sub)
		}
	}

	onComplete := config.OnRunComplete
	config.OnRunComplete = func(sub *Submission, result *pipeline.Result) {
		reg.RunnerActive.WithLabelValues(pool).Dec()
		reg.RunnerCompleted.WithLabelValues(pool, pipeline.Outcome(result)).Inc()
		if onComplete != nil {
			onComplete(sub, result)
		}
	}

	return config
}
