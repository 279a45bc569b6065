package guard

import (
	"context"
	"sync"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// Slots bounds the number of simultaneous runs. Each running pipeline
// holds one slot from admission to completion.
type Slots struct {
	mu        sync.Mutex
	capacity  int
	available int
	inUse     int
	waiters   []slotWaiter
}

type slotWaiter struct {
	ready  chan struct{}
	cancel <-chan struct{}
}

// NewSlots creates a slot guard allowing capacity simultaneous runs.
func NewSlots(capacity int) (*Slots, error) {
	if capacity <= 0 {
		return nil, vperrors.NewValidationError("guard", "capacity", capacity, "capacity must be positive").
			WithHint("capacity is the number of runs allowed at once")
	}
	return &Slots{
		capacity:  capacity,
		available: capacity,
	}, nil
}

// TryAcquire takes a slot if one is free. It does not block.
func (s *Slots) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.available > 0 {
		s.available--
		s.inUse++
		return true
	}
	return false
}

// Acquire blocks until a slot is free or the context ends. Waiters are
// served in arrival order.
func (s *Slots) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.available > 0 {
		s.available--
		s.inUse++
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, slotWaiter{ready: ready, cancel: ctx.Done()})
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		if !s.removeWaiter(ready) {
			// The slot was granted before we could withdraw; hand it back.
			s.Release()
		}
		return ctx.Err()
	}
}

// Release returns a slot. It panics when more slots are released than
// were acquired.
func (s *Slots) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inUse < 1 {
		panic("guard: released more slots than acquired")
	}
	s.inUse--
	if s.inUse+s.available < s.capacity {
		s.available++
		s.notifyWaiters()
	}
}

// SetCapacity changes the number of simultaneous runs allowed. Shrinking
// below current usage takes effect as runs finish.
func (s *Slots) SetCapacity(capacity int) {
	if capacity <= 0 {
		panic("guard: capacity must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	diff := capacity - s.capacity
	s.capacity = capacity
	if diff > 0 {
		s.available += diff
		s.notifyWaiters()
		return
	}
	s.available += diff
	if s.available < 0 {
		s.available = 0
	}
}

// Capacity returns the number of simultaneous runs allowed.
func (s *Slots) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Available returns the number of free slots.
func (s *Slots) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// InUse returns the number of held slots.
func (s *Slots) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}

// Waiting returns the number of queued acquirers.
func (s *Slots) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// notifyWaiters grants free slots to waiters in arrival order. Callers
// hold the lock.
func (s *Slots) notifyWaiters() {
	var remaining []slotWaiter
	for i, w := range s.waiters {
		select {
		case <-w.cancel:
			continue
		default:
		}

		if s.available > 0 {
			s.available--
			s.inUse++
			close(w.ready)
			continue
		}
		remaining = append(remaining, s.waiters[i:]...)
		break
	}
	s.waiters = remaining
}

// removeWaiter withdraws a waiter and reports whether it was still queued.
func (s *Slots) removeWaiter(ready chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waiters {
		if w.ready == ready {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}
