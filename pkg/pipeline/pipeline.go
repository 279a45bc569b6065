package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/symphovais/voicepipe/pkg/progress"
)

// ErrCanceled is the terminal error for runs stopped by cooperative
// cancellation. It is distinct from stage failure.
var ErrCanceled = errors.New("pipeline run canceled")

// ErrStageFailed is the terminal error for runs stopped by a stage that
// exhausted its retries.
var ErrStageFailed = errors.New("stage failed")

// CanceledMessage is the prefix of every cancellation ErrorMessage, so
// callers without access to Err() can still branch on it.
const CanceledMessage = "pipeline run canceled"

// Pipeline executes an ordered list of stages sequentially against one run
// context, applying per-stage retry, cooperative cancellation, progress
// reporting, and stop-on-failure semantics.
type Pipeline interface {
	// Execute runs the pipeline to completion and returns its result. The
	// returned error is nil on success, wraps ErrCanceled on cancellation,
	// and wraps ErrStageFailed when a stage exhausted its retries. The
	// result carries the same information plus all collected metrics.
	Execute(ctx context.Context, run *Context) (*Result, error)

	// ExecuteAsync starts the run and returns a channel that yields the
	// single result when the run finishes.
	ExecuteAsync(ctx context.Context, run *Context) <-chan *Result

	// AddStage appends a stage to the execution order.
	AddStage(stage Stage) Pipeline

	// AddFunc appends a function stage with no retries.
	AddFunc(name string, fn func(ctx context.Context, run *Context) StageResult) Pipeline

	// Stages returns the stages in execution order.
	Stages() []Stage

	// Stats returns cumulative execution statistics across runs.
	Stats() Stats
}

// Config holds pipeline lifecycle callbacks. All callbacks are optional
// and invoked synchronously from the run's goroutine.
type Config struct {
	// OnRunStart is called once when a run begins.
	OnRunStart func(runID string, stages int)

	// OnStageStart is called before every attempt. attempt starts at 1.
	OnStageStart func(runID string, stage Stage, attempt int)

	// OnRetry is called after a failed attempt when retries remain, before
	// the retry delay is waited out.
	OnRetry func(runID string, stage Stage, attempt int, wait time.Duration)

	// OnStageComplete is called once per completed stage with the result
	// of its final attempt.
	OnStageComplete func(runID string, result StageResult)

	// OnRunComplete is called once when the run finishes, for any outcome.
	OnRunComplete func(result *Result)
}

// Stats holds cumulative pipeline execution statistics.
type Stats struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	CanceledRuns    int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	LastRunAt       time.Time
	StageStats      map[string]StageStats
}

// StageStats holds cumulative statistics for stages sharing one name.
type StageStats struct {
	Name            string
	Attempts        int64
	Completions     int64
	Successes       int64
	Failures        int64
	Retries         int64
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// pipeline implements the Pipeline interface.
type pipeline struct {
	mu     sync.RWMutex
	stages []Stage
	config Config
	stats  Stats
}

// New creates a pipeline with default configuration.
func New(stages ...Stage) Pipeline {
	return NewWithConfig(Config{}, stages...)
}

// NewWithConfig creates a pipeline with the specified configuration.
func NewWithConfig(config Config, stages ...Stage) Pipeline {
	p := &pipeline{
		config: config,
		stats: Stats{
			StageStats: make(map[string]StageStats),
		},
	}
	for _, stage := range stages {
		p.AddStage(stage)
	}
	return p
}

// Execute runs the pipeline to completion.
func (p *pipeline) Execute(ctx context.Context, run *Context) (*Result, error) {
	result := <-p.ExecuteAsync(ctx, run)
	return result, result.Err()
}

// ExecuteAsync starts the run in its own goroutine.
func (p *pipeline) ExecuteAsync(ctx context.Context, run *Context) <-chan *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if run == nil {
		run = NewContext()
	}

	resultCh := make(chan *Result, 1)
	go func() {
		defer close(resultCh)
		resultCh <- p.run(ctx, run)
	}()
	return resultCh
}

// run drives one complete execution.
func (p *pipeline) run(ctx context.Context, run *Context) *Result {
	stages := p.Stages()

	result := &Result{
		RunID:     run.RunID(),
		Metrics:   &PipelineMetrics{},
		StartTime: time.Now(),
	}

	if p.config.OnRunStart != nil {
		p.config.OnRunStart(run.RunID(), len(stages))
	}

	// Fold the caller's context into the run's cancellation signal so an
	// external deadline stops the run at the next check point. A context
	// canceled before the run starts must be seen by the first check.
	if ctx.Err() != nil {
		run.Cancel()
	}
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			run.Cancel()
		case <-watchDone:
		}
	}()

	p.runStages(ctx, run, stages, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.updateRunStats(result)

	if p.config.OnRunComplete != nil {
		p.config.OnRunComplete(result)
	}
	return result
}

// runStages iterates the stage list in order, honoring cancellation before
// each stage and stopping on the first exhausted failure.
func (p *pipeline) runStages(ctx context.Context, run *Context, stages []Stage, result *Result) {
	total := len(stages)

	for i, stage := range stages {
		if run.Canceled() {
			p.markCanceled(result, fmt.Sprintf("before stage %q", stage.Name()))
			return
		}

		stageResult, canceled := p.runStage(ctx, run, stage)

		result.Metrics.append(stageResult.Metrics)
		p.updateStageStats(stage.Name(), stageResult)
		if p.config.OnStageComplete != nil {
			p.config.OnStageComplete(run.RunID(), stageResult)
		}
		p.publishStageEvent(run, stage, stageResult, i+1, total)

		if canceled {
			p.markCanceled(result, fmt.Sprintf("while retrying stage %q", stage.Name()))
			return
		}
		if !stageResult.IsSuccess {
			result.IsSuccess = false
			result.ErrorMessage = stageResult.ErrorMessage
			result.FailedStage = stage.Name()
			result.err = fmt.Errorf("stage %q: %w: %s", stage.Name(), ErrStageFailed, stageResult.ErrorMessage)
			return
		}
	}

	// Every stage succeeded. A pipeline with zero stages is a valid,
	// trivially successful run.
	result.IsSuccess = true
}

// runStage executes one stage with its retry policy. The returned boolean
// reports cancellation during a retry wait, which aborts the run without
// counting as a stage failure.
func (p *pipeline) runStage(ctx context.Context, run *Context, stage Stage) (StageResult, bool) {
	attempts := stage.RetryCount() + 1
	if attempts < 1 {
		attempts = 1
	}
	delay := stage.RetryDelay()
	if delay < 0 {
		delay = 0
	}

	var stageResult StageResult
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.config.OnStageStart != nil {
			p.config.OnStageStart(run.RunID(), stage, attempt)
		}
		p.recordAttempt(stage.Name())

		stageResult = p.attempt(ctx, run, stage)

		if stageResult.IsSuccess || attempt == attempts {
			break
		}

		if p.config.OnRetry != nil {
			p.config.OnRetry(run.RunID(), stage, attempt, delay)
		}
		p.recordRetry(stage.Name())

		if !waitRetry(run, delay) {
			return stageResult, true
		}
	}
	return stageResult, false
}

// attempt invokes the stage once, converting a panic into a failing result
// and stamping metrics so every surfaced result carries valid timing.
func (p *pipeline) attempt(ctx context.Context, run *Context, stage Stage) (stageResult StageResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			stageResult = Failuref("panic: %v", r)
		}
		normalize(&stageResult, stage, start, time.Now())
	}()

	stageResult = stage.Execute(ctx, run)
	return stageResult
}

// normalize guarantees a non-nil Metrics with name, type, and timestamps.
// Values the stage filled in itself are left alone.
func normalize(stageResult *StageResult, stage Stage, start, end time.Time) {
	if stageResult.Metrics == nil {
		stageResult.Metrics = &StageMetrics{}
	}
	m := stageResult.Metrics
	if m.StageName == "" {
		m.StageName = stage.Name()
	}
	if m.StageType == "" {
		m.StageType = stage.Type()
	}
	if m.StartTime.IsZero() {
		m.StartTime = start
	}
	if m.EndTime.IsZero() {
		m.EndTime = end
	}
}

// waitRetry sleeps out the retry delay, honoring cancellation. It returns
// false when the run was canceled, either before an immediate re-attempt
// or while waiting.
func waitRetry(run *Context, delay time.Duration) bool {
	if delay <= 0 {
		return !run.Canceled()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !run.Canceled()
	case <-run.Done():
		return false
	}
}

// markCanceled finalizes a result for cooperative cancellation. The error
// message is cancellation-specific so callers can tell it apart from a
// stage failure.
func (p *pipeline) markCanceled(result *Result, detail string) {
	result.IsSuccess = false
	result.Canceled = true
	result.ErrorMessage = CanceledMessage + " " + detail
	result.err = fmt.Errorf("%w %s", ErrCanceled, detail)
}

// publishStageEvent emits the executor's progress notification for a
// completed stage. Percent reflects position in the stage list.
func (p *pipeline) publishStageEvent(run *Context, stage Stage, stageResult StageResult, index, total int) {
	message := "completed"
	if !stageResult.IsSuccess {
		message = "failed: " + stageResult.ErrorMessage
	}
	run.Publish(progress.Event{
		Stage:   stage.Name(),
		Message: message,
		Percent: index * 100 / total,
	})
}

// AddStage appends a stage to the execution order.
func (p *pipeline) AddStage(stage Stage) Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stages = append(p.stages, stage)

	if _, exists := p.stats.StageStats[stage.Name()]; !exists {
		p.stats.StageStats[stage.Name()] = StageStats{
			Name: stage.Name(),
		}
	}
	return p
}

// AddFunc appends a function stage with no retries.
func (p *pipeline) AddFunc(name string, fn func(ctx context.Context, run *Context) StageResult) Pipeline {
	return p.AddStage(NewFunc(name, fn))
}

// Stages returns a copy of the stage list in execution order.
func (p *pipeline) Stages() []Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stages := make([]Stage, len(p.stages))
	copy(stages, p.stages)
	return stages
}

// Stats returns a copy of the cumulative execution statistics.
func (p *pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	statsCopy := p.stats
	statsCopy.StageStats = make(map[string]StageStats, len(p.stats.StageStats))
	for name, stageStats := range p.stats.StageStats {
		statsCopy.StageStats[name] = stageStats
	}

	if statsCopy.TotalRuns > 0 {
		statsCopy.AverageDuration = time.Duration(int64(statsCopy.TotalDuration) / statsCopy.TotalRuns)
	}
	return statsCopy
}

// updateRunStats records a finished run.
func (p *pipeline) updateRunStats(result *Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalRuns++
	p.stats.TotalDuration += result.Duration
	p.stats.LastRunAt = result.EndTime

	switch {
	case result.Canceled:
		p.stats.CanceledRuns++
	case result.IsSuccess:
		p.stats.SuccessfulRuns++
	default:
		p.stats.FailedRuns++
	}
}

// updateStageStats records the final attempt of a completed stage.
func (p *pipeline) updateStageStats(stageName string, stageResult StageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, exists := p.stats.StageStats[stageName]
	if !exists {
		stats = StageStats{Name: stageName}
	}

	stats.Completions++
	stats.TotalDuration += stageResult.Metrics.Duration()

	if stageResult.IsSuccess {
		stats.Successes++
	} else {
		stats.Failures++
	}

	if stats.Completions > 0 {
		stats.AverageDuration = time.Duration(int64(stats.TotalDuration) / stats.Completions)
	}

	p.stats.StageStats[stageName] = stats
}

// recordAttempt counts one execution attempt of a stage.
func (p *pipeline) recordAttempt(stageName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats.StageStats[stageName]
	if stats.Name == "" {
		stats.Name = stageName
	}
	stats.Attempts++
	p.stats.StageStats[stageName] = stats
}

// recordRetry counts one retry of a stage.
func (p *pipeline) recordRetry(stageName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats.StageStats[stageName]
	if stats.Name == "" {
		stats.Name = stageName
	}
	stats.Retries++
	p.stats.StageStats[stageName] = stats
}
