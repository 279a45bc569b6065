// Package metrics provides Prometheus instrumentation for voicepipe components.
//
// This package enables monitoring and observability for voicepipe's pipeline
// execution, run triggering, history storage, and background runner through
// Prometheus metrics.
//
// # Overview
//
// The metrics package provides automatic instrumentation for:
//   - Pipeline runs (totals by outcome, active runs, run duration)
//   - Stage execution (duration, retries, exhausted failures)
//   - Trigger requests (received, denied before execution)
//   - History storage (saves, save failures, retention pruning)
//   - The background runner (queued runs, active workers, completions)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Pipeline with metrics
//	p := pipeline.NewWithMetrics("dictation", metrics.DefaultRegistry, stages...)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	reg := prometheus.NewRegistry()
//	registry := metrics.NewRegistry(reg)
//
//	p := pipeline.NewWithMetrics("dictation", registry, stages...)
//
// # Available Metrics
//
// Pipeline metrics:
//
//   - voicepipe_pipeline_runs_total: Total number of pipeline runs by outcome
//   - voicepipe_pipeline_active_runs: Number of pipeline runs currently executing
//   - voicepipe_pipeline_run_duration_seconds: Wall-clock duration of complete runs
//
// Stage metrics:
//
//   - voicepipe_stage_duration_seconds: Duration of the final attempt of each stage
//   - voicepipe_stage_retries_total: Total number of stage retry attempts
//   - voicepipe_stage_failures_total: Stage executions that exhausted retries
//
// Trigger metrics:
//
//   - voicepipe_trigger_requests_total: Trigger requests received
//   - voicepipe_trigger_denied_total: Trigger requests denied before execution
//
// History metrics:
//
//   - voicepipe_history_saves_total: Run records saved
//   - voicepipe_history_save_failures_total: Failed save attempts
//   - voicepipe_history_pruned_total: Records removed by retention pruning
//
// Runner metrics:
//
//   - voicepipe_runner_queued_runs: Runs waiting in the runner queue
//   - voicepipe_runner_active_workers: Workers currently executing a run
//   - voicepipe_runner_completed_total: Runs completed by the runner by outcome
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - pipeline: Name given to the pipeline instance
//   - stage: Stage name within the pipeline
//   - outcome: "success", "failure", or "canceled"
//   - route: HTTP route that received a trigger request
//   - reason: Why a trigger was denied (e.g. "rate_limited", "busy")
//   - backend: History backend ("memory" or "redis")
//   - pool: Name given to the runner pool
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Metrics are updated only when operations occur
//   - No background goroutines or timers
//   - A nil *Registry disables collection entirely
package metrics
