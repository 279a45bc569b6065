package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// SweeperConfig holds configuration for the retention sweeper.
type SweeperConfig struct {
	// Store is pruned on each sweep. Required.
	Store Store

	// Keep is the number of newest records retained.
	// Default: 500
	Keep int

	// Schedule is a cron expression with optional seconds field, or a
	// descriptor like "@hourly" or "@every 10m".
	// Default: "@hourly"
	Schedule string

	// SweepTimeout bounds a single prune pass.
	// Default: 30s
	SweepTimeout time.Duration

	// OnSweep is called after each successful sweep with the number of
	// removed records.
	OnSweep func(removed int)

	// OnError is called when a sweep fails.
	OnError func(err error)
}

// Sweeper prunes a history store on a cron schedule.
type Sweeper struct {
	config   SweeperConfig
	schedule cron.Schedule

	stop    chan struct{}
	done    chan struct{}
	started int32
	stopped int32
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper. Start begins sweeping.
func NewSweeper(config SweeperConfig) (*Sweeper, error) {
	if config.Store == nil {
		return nil, vperrors.NewValidationError("history", "Store", nil, "store is required")
	}
	if config.Keep < 0 {
		return nil, vperrors.NewValidationError("history", "Keep", config.Keep, "must not be negative")
	}
	if config.Keep == 0 {
		config.Keep = 500
	}
	if config.Schedule == "" {
		config.Schedule = "@hourly"
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = 30 * time.Second
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(config.Schedule)
	if err != nil {
		return nil, vperrors.NewValidationError("history", "Schedule", config.Schedule, "invalid cron expression").
			WithHint("use standard cron syntax or a descriptor like @hourly")
	}

	return &Sweeper{
		config:   config,
		schedule: schedule,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. Starting twice has no effect.
func (s *Sweeper) Start() {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
// Stopping a never-started or already-stopped sweeper has no effect.
func (s *Sweeper) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}
	close(s.stop)
	if atomic.LoadInt32(&s.started) == 1 {
		s.wg.Wait()
	}
	close(s.done)
}

// Done is closed once the sweeper has fully stopped.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.sweep()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// Sweep runs one prune pass immediately, outside the schedule.
func (s *Sweeper) Sweep() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SweepTimeout)
	defer cancel()
	return s.config.Store.Prune(ctx, s.config.Keep)
}

func (s *Sweeper) sweep() {
	removed, err := s.Sweep()
	if err != nil {
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
		return
	}
	if s.config.OnSweep != nil {
		s.config.OnSweep(removed)
	}
}
