package guard

import (
	"context"
	"fmt"
	"sync"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// Config holds configuration options for a Guard. A zero value disables
// the corresponding check.
type Config struct {
	// RatePerMinute is the trigger budget. Zero disables rate admission.
	// Default: 30
	RatePerMinute float64

	// Burst is how many triggers may arrive back to back.
	// Default: 5
	Burst int

	// MaxConcurrent bounds simultaneous runs. Zero disables the bound.
	// Default: 2
	MaxConcurrent int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock
}

// DefaultConfig returns the default admission configuration.
func DefaultConfig() Config {
	return Config{
		RatePerMinute: 30,
		Burst:         5,
		MaxConcurrent: 2,
	}
}

// Guard admits dictation trigger requests. It combines a token bucket
// over trigger frequency with a bound on simultaneous runs.
type Guard struct {
	rate  *Rate
	slots *Slots
}

// New creates a Guard.
func New(config Config) (*Guard, error) {
	if config.RatePerMinute < 0 {
		return nil, vperrors.NewValidationError("guard", "RatePerMinute", config.RatePerMinute, "must not be negative").
			WithHint("use 0 to disable rate admission")
	}
	if config.Burst < 0 {
		return nil, vperrors.NewValidationError("guard", "Burst", config.Burst, "must not be negative")
	}
	if config.MaxConcurrent < 0 {
		return nil, vperrors.NewValidationError("guard", "MaxConcurrent", config.MaxConcurrent, "must not be negative").
			WithHint("use 0 to disable the concurrency bound")
	}

	g := &Guard{}

	if config.RatePerMinute > 0 {
		burst := config.Burst
		if burst == 0 {
			burst = DefaultConfig().Burst
		}
		rate, err := NewRateWithConfig(RateConfig{
			Rate:          PerMinute(config.RatePerMinute),
			Burst:         burst,
			Clock:         config.Clock,
			InitialTokens: -1,
		})
		if err != nil {
			return nil, err
		}
		g.rate = rate
	}

	if config.MaxConcurrent > 0 {
		slots, err := NewSlots(config.MaxConcurrent)
		if err != nil {
			return nil, err
		}
		g.slots = slots
	}

	return g, nil
}

// Admit decides whether a trigger may start a run now. On success it
// returns a release function that must be called when the run finishes.
// Denials map to ErrCapacityExceeded (too many running) or ErrRateLimited
// (budget exhausted) for errors.Is.
func (g *Guard) Admit() (func(), error) {
	if g.slots != nil && !g.slots.TryAcquire() {
		return nil, fmt.Errorf("run slots: %w", vperrors.ErrCapacityExceeded)
	}
	if g.rate != nil && !g.rate.Allow() {
		if g.slots != nil {
			g.slots.Release()
		}
		return nil, fmt.Errorf("trigger budget: %w", vperrors.ErrRateLimited)
	}
	return g.release(), nil
}

// AdmitWait is Admit that blocks until the run may start or the context
// ends.
func (g *Guard) AdmitWait(ctx context.Context) (func(), error) {
	if g.slots != nil {
		if err := g.slots.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	if g.rate != nil {
		if err := g.rate.Wait(ctx); err != nil {
			if g.slots != nil {
				g.slots.Release()
			}
			return nil, err
		}
	}
	return g.release(), nil
}

// release builds the idempotent slot return for an admitted run.
func (g *Guard) release() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if g.slots != nil {
				g.slots.Release()
			}
		})
	}
}

// Status describes the guard's current admission headroom.
type Status struct {
	RateEnabled   bool
	Tokens        float64
	Burst         int
	SlotsEnabled  bool
	SlotsInUse    int
	SlotsCapacity int
}

// Status reports the current admission headroom.
func (g *Guard) Status() Status {
	var st Status
	if g.rate != nil {
		st.RateEnabled = true
		st.Tokens = g.rate.Tokens()
		st.Burst = g.rate.Burst()
	}
	if g.slots != nil {
		st.SlotsEnabled = true
		st.SlotsInUse = g.slots.InUse()
		st.SlotsCapacity = g.slots.Capacity()
	}
	return st
}
