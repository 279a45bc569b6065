package guard

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// Limit is a refill rate in tokens per second. A zero Limit never refills,
// so only the initial burst is available.
type Limit float64

// Inf admits every request.
var Inf = Limit(math.Inf(1))

// PerMinute converts a per-minute trigger budget to a Limit.
func PerMinute(n float64) Limit {
	if n <= 0 {
		return 0
	}
	return Limit(n / 60)
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// RateConfig holds configuration options for a Rate.
type RateConfig struct {
	// Rate is the number of tokens added per second.
	Rate Limit

	// Burst is the maximum number of tokens that can be stored.
	Burst int

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock

	// InitialTokens is the number of tokens to start with. If negative,
	// starts with full capacity.
	InitialTokens int
}

// Rate is a token bucket that admits trigger requests. Each admitted run
// consumes one token; tokens refill continuously at the configured rate.
type Rate struct {
	mu     sync.Mutex
	limit  Limit
	burst  int
	tokens float64
	last   time.Time
	clock  Clock
}

// NewRate creates a rate guard that starts with a full bucket.
func NewRate(rate Limit, burst int) (*Rate, error) {
	return NewRateWithConfig(RateConfig{
		Rate:          rate,
		Burst:         burst,
		InitialTokens: -1,
	})
}

// NewRateWithConfig creates a rate guard from a config.
func NewRateWithConfig(config RateConfig) (*Rate, error) {
	if config.Rate < 0 {
		return nil, vperrors.NewValidationError("guard", "Rate", config.Rate, "rate must not be negative").
			WithHint("use 0 to allow only the initial burst")
	}
	if config.Burst <= 0 {
		return nil, vperrors.NewValidationError("guard", "Burst", config.Burst, "burst must be positive")
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	tokens := float64(config.InitialTokens)
	if config.InitialTokens < 0 || config.InitialTokens > config.Burst {
		tokens = float64(config.Burst)
	}

	return &Rate{
		limit:  config.Rate,
		burst:  config.Burst,
		tokens: tokens,
		last:   config.Clock.Now(),
		clock:  config.Clock,
	}, nil
}

// Allow reports whether one request may be admitted now. It does not block.
func (r *Rate) Allow() bool {
	return r.AllowN(1)
}

// AllowN reports whether n requests may be admitted now. It does not block.
func (r *Rate) AllowN(n int) bool {
	if n <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(r.clock.Now())
	if r.tokens >= float64(n) {
		r.tokens -= float64(n)
		return true
	}
	return false
}

// Wait blocks until one request can be admitted. It returns ErrRateLimited
// when the budget can never be met, and the context error on cancellation.
func (r *Rate) Wait(ctx context.Context) error {
	return r.WaitN(ctx, 1)
}

// WaitN blocks until n requests can be admitted.
func (r *Rate) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	now := r.clock.Now()
	r.refill(now)

	if r.tokens >= float64(n) {
		r.tokens -= float64(n)
		r.mu.Unlock()
		return nil
	}

	if r.limit == 0 || n > r.burst {
		r.mu.Unlock()
		return fmt.Errorf("trigger budget: %w", vperrors.ErrRateLimited)
	}

	// Claim the tokens now; the debt pays off while we sleep.
	needed := float64(n) - r.tokens
	wait := time.Duration(needed / float64(r.limit) * float64(time.Second))
	r.tokens -= float64(n)
	r.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.refund(n)
		return ctx.Err()
	}
}

// Tokens returns the number of tokens currently available.
func (r *Rate) Tokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(r.clock.Now())
	return r.tokens
}

// Limit returns the current refill rate.
func (r *Rate) Limit() Limit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

// Burst returns the current burst size.
func (r *Rate) Burst() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.burst
}

// SetLimit changes the refill rate. It preserves the current burst size.
func (r *Rate) SetLimit(limit Limit) {
	if limit < 0 {
		panic("guard: rate must not be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(r.clock.Now())
	r.limit = limit
}

// SetBurst changes the burst size. It preserves the current refill rate.
func (r *Rate) SetBurst(burst int) {
	if burst <= 0 {
		panic("guard: burst must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(r.clock.Now())
	r.burst = burst
	if r.tokens > float64(burst) {
		r.tokens = float64(burst)
	}
}

// refill adds tokens for the time elapsed since the last update. Callers
// hold the lock.
func (r *Rate) refill(now time.Time) {
	if r.limit == Inf {
		r.tokens = float64(r.burst)
		r.last = now
		return
	}
	if r.limit == 0 {
		r.last = now
		return
	}

	elapsed := now.Sub(r.last)
	if elapsed <= 0 {
		return
	}
	r.tokens = math.Min(r.tokens+elapsed.Seconds()*float64(r.limit), float64(r.burst))
	r.last = now
}

// refund restores tokens from an abandoned wait.
func (r *Rate) refund(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(r.clock.Now())
	r.tokens = math.Min(r.tokens+float64(n), float64(r.burst))
}
