// Package runner executes submitted pipeline runs on a fixed pool of
// workers. Submissions queue up to a bound and are rejected beyond it,
// so a flood of triggers degrades into fast denials instead of unbounded
// memory growth. Each submission gets its own result channel.
package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
	"github.com/symphovais/voicepipe/pkg/pipeline"
)

// Sentinel errors returned by Submit. Both unwrap to the shared error
// taxonomy so transports can map them without importing this package's
// internals.
var (
	// ErrQueueFull rejects a submission when the queue has no room.
	ErrQueueFull = fmt.Errorf("runner: queue full: %w", vperrors.ErrCapacityExceeded)

	// ErrShutdown rejects submissions arriving after Shutdown.
	ErrShutdown = fmt.Errorf("runner: shut down: %w", vperrors.ErrClosed)
)

// Submission pairs a pipeline with the run context to execute it against.
type Submission struct {
	// Pipeline is the pipeline to run.
	Pipeline pipeline.Pipeline

	// Run is the context seeded with the run's input data.
	Run *pipeline.Context
}

// Config holds configuration options for a Runner.
type Config struct {
	// Workers is the number of concurrent run executors.
	// Default: 2
	Workers int

	// QueueSize is the maximum number of submissions waiting for a
	// worker. Submissions beyond it are rejected with ErrQueueFull.
	// Default: 8
	QueueSize int

	// OnRunQueued is called after a submission is accepted into the
	// queue.
	OnRunQueued func(*Submission)

	// OnRunStart is called when a worker picks a submission up.
	OnRunStart func(*Submission)

	// OnRunComplete is called when a run finishes, before its result is
	// delivered.
	OnRunComplete func(*Submission, *pipeline.Result)
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		QueueSize: 8,
	}
}

// Runner is a fixed worker pool executing pipeline runs.
type Runner struct {
	config Config
	queue  chan job
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	active int32
}

type job struct {
	sub    Submission
	ctx    context.Context
	result chan *pipeline.Result
}

// New creates a Runner and starts its workers.
func New(config Config) (*Runner, error) {
	if config.Workers < 0 {
		return nil, vperrors.NewValidationError("runner", "Workers", config.Workers, "must not be negative").
			WithHint("use 0 for the default worker count")
	}
	if config.QueueSize < 0 {
		return nil, vperrors.NewValidationError("runner", "QueueSize", config.QueueSize, "must not be negative")
	}
	if config.Workers == 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize == 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	r := &Runner{
		config: config,
		queue:  make(chan job, config.QueueSize),
		done:   make(chan struct{}),
	}
	for i := 0; i < config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r, nil
}

// Submit queues a run for execution and returns the channel its result
// will be delivered on. It never blocks: a full queue returns
// ErrQueueFull and a stopped runner returns ErrShutdown. The context
// governs the run itself, so canceling it after acceptance cancels the
// run.
func (r *Runner) Submit(ctx context.Context, sub Submission) (<-chan *pipeline.Result, error) {
	if sub.Pipeline == nil {
		return nil, vperrors.NewValidationError("runner", "Pipeline", nil, "submission needs a pipeline")
	}
	if sub.Run == nil {
		return nil, vperrors.NewValidationError("runner", "Run", nil, "submission needs a run context")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	j := job{
		sub:    sub,
		ctx:    ctx,
		result: make(chan *pipeline.Result, 1),
	}

	// The lock orders the send against Shutdown's close of the queue.
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrShutdown
	}
	select {
	case r.queue <- j:
		r.mu.RUnlock()
	default:
		r.mu.RUnlock()
		return nil, ErrQueueFull
	}

	if r.config.OnRunQueued != nil {
		r.config.OnRunQueued(&j.sub)
	}
	return j.result, nil
}

// Shutdown stops intake, lets queued and running work finish, and
// returns a channel that closes when every worker has exited. It is safe
// to call more than once.
func (r *Runner) Shutdown() <-chan struct{} {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.queue)

		go func() {
			r.wg.Wait()
			close(r.done)
		}()
	})
	return r.done
}

// Workers returns the size of the worker pool.
func (r *Runner) Workers() int {
	return r.config.Workers
}

// QueueDepth returns the number of submissions waiting for a worker.
func (r *Runner) QueueDepth() int {
	return len(r.queue)
}

// Active returns the number of runs currently executing.
func (r *Runner) Active() int {
	return int(atomic.LoadInt32(&r.active))
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.queue {
		r.execute(j)
	}
}

func (r *Runner) execute(j job) {
	atomic.AddInt32(&r.active, 1)
	if r.config.OnRunStart != nil {
		r.config.OnRunStart(&j.sub)
	}

	result := r.runOne(j)

	atomic.AddInt32(&r.active, -1)
	if r.config.OnRunComplete != nil {
		r.config.OnRunComplete(&j.sub, result)
	}

	j.result <- result
	close(j.result)
}

// runOne executes the submission, converting a panicking pipeline into a
// failing result so the worker survives.
func (r *Runner) runOne(j job) (result *pipeline.Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			end := time.Now()
			result = &pipeline.Result{
				RunID:        j.sub.Run.RunID(),
				ErrorMessage: fmt.Sprintf("panic: %v", rec),
				Metrics:      &pipeline.PipelineMetrics{},
				StartTime:    start,
				EndTime:      end,
				Duration:     end.Sub(start),
			}
		}
	}()

	result, _ = j.sub.Pipeline.Execute(j.ctx, j.sub.Run)
	return result
}
