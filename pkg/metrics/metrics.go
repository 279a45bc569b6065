// Package metrics provides Prometheus instrumentation for voicepipe components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values recorded for finished runs.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// Registry holds all metric instances for voicepipe components.
type Registry struct {
	// Pipeline Metrics
	PipelineRuns       *prometheus.CounterVec
	PipelineActiveRuns *prometheus.GaugeVec
	RunDuration        *prometheus.HistogramVec
	StageDuration      *prometheus.HistogramVec
	StageRetries       *prometheus.CounterVec
	StageFailures      *prometheus.CounterVec

	// Trigger Metrics
	TriggerRequests *prometheus.CounterVec
	TriggerDenied   *prometheus.CounterVec

	// History Metrics
	HistorySaves        *prometheus.CounterVec
	HistorySaveFailures *prometheus.CounterVec
	HistoryPruned       *prometheus.CounterVec

	// Runner Metrics
	RunnerQueued    *prometheus.GaugeVec
	RunnerActive    *prometheus.GaugeVec
	RunnerCompleted *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by voicepipe components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Pipeline Metrics
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"pipeline", "outcome"},
		),

		PipelineActiveRuns: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "voicepipe",
				Subsystem: "pipeline",
				Name:      "active_runs",
				Help:      "Number of pipeline runs currently executing",
			},
			[]string{"pipeline"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "voicepipe",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of complete pipeline runs",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "voicepipe",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Wall-clock duration of the final attempt of each stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline", "stage"},
		),

		StageRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "stage",
				Name:      "retries_total",
				Help:      "Total number of stage retry attempts",
			},
			[]string{"pipeline", "stage"},
		),

		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "stage",
				Name:      "failures_total",
				Help:      "Total number of stage executions that exhausted retries",
			},
			[]string{"pipeline", "stage"},
		),

		// Trigger Metrics
		TriggerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "trigger",
				Name:      "requests_total",
				Help:      "Total number of run trigger requests received",
			},
			[]string{"route"},
		),

		TriggerDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "trigger",
				Name:      "denied_total",
				Help:      "Total number of trigger requests denied before execution",
			},
			[]string{"reason"},
		),

		// History Metrics
		HistorySaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "history",
				Name:      "saves_total",
				Help:      "Total number of run records saved to history",
			},
			[]string{"backend"},
		),

		HistorySaveFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "history",
				Name:      "save_failures_total",
				Help:      "Total number of failed history save attempts",
			},
			[]string{"backend"},
		),

		HistoryPruned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "history",
				Name:      "pruned_total",
				Help:      "Total number of run records removed by retention pruning",
			},
			[]string{"backend"},
		),

		// Runner Metrics
		RunnerQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "voicepipe",
				Subsystem: "runner",
				Name:      "queued_runs",
				Help:      "Number of runs waiting in the runner queue",
			},
			[]string{"pool"},
		),

		RunnerActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "voicepipe",
				Subsystem: "runner",
				Name:      "active_workers",
				Help:      "Number of runner workers currently executing a run",
			},
			[]string{"pool"},
		),

		RunnerCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicepipe",
				Subsystem: "runner",
				Name:      "completed_total",
				Help:      "Total number of runs completed by the runner by outcome",
			},
			[]string{"pool", "outcome"},
		),
	}
}
