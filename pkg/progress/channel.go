package progress

import (
	"sync"
	"sync/atomic"
)

// ChannelSink buffers events on a channel for consumption elsewhere, for
// example a UI goroutine or a server-sent-events loop. When the buffer is
// full, new events are dropped and counted rather than blocking the run.
type ChannelSink struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped int64 // atomic
}

// NewChannel creates a ChannelSink with the given buffer capacity.
// Capacities below 1 fall back to 16.
func NewChannel(capacity int) *ChannelSink {
	if capacity < 1 {
		capacity = 16
	}
	return &ChannelSink{ch: make(chan Event, capacity)}
}

// Publish implements the Sink interface. It never blocks.
func (cs *ChannelSink) Publish(e Event) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.closed {
		return
	}
	select {
	case cs.ch <- e:
	default:
		atomic.AddInt64(&cs.dropped, 1)
	}
}

// Events returns the receive side of the buffer. The channel is closed by
// Close once no further events will be delivered.
func (cs *ChannelSink) Events() <-chan Event {
	return cs.ch
}

// Dropped returns how many events were discarded because the buffer was full.
func (cs *ChannelSink) Dropped() int64 {
	return atomic.LoadInt64(&cs.dropped)
}

// Close stops delivery and closes the events channel. Safe to call more
// than once.
func (cs *ChannelSink) Close() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.closed {
		return
	}
	cs.closed = true
	close(cs.ch)
}
