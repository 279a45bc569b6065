package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/symphovais/voicepipe/pkg/progress"
)

// Context is the shared, per-run state for one pipeline execution. Stages
// communicate exclusively through it: each stage reads its inputs by
// documented key, writes its outputs by documented key, and may poll the
// cancellation signal for early exit during long-running work.
//
// Key naming is a convention between the caller and the stage set. The
// executor never interprets the data the context carries.
//
// A Context belongs to exactly one run. Configure it with SetSink and
// SetRunID before executing; during the run only the data map and the
// cancellation signal are safe to touch concurrently.
type Context struct {
	runID  string
	ctx    context.Context
	cancel context.CancelFunc
	sink   progress.Sink

	mu   sync.RWMutex
	data map[string]interface{}
}

// NewContext creates a run context with a generated run ID, no parent
// deadline, and a discarding progress sink.
func NewContext() *Context {
	return NewContextFrom(context.Background())
}

// NewContextFrom creates a run context whose cancellation signal also fires
// when the parent context is canceled. Use this to bound a run by an
// external deadline.
func NewContextFrom(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{
		runID:  uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		sink:   progress.Discard,
		data:   make(map[string]interface{}),
	}
}

// SetSink attaches a progress sink to the run. A nil sink restores the
// discarding default. Returns the context for chaining.
func (c *Context) SetSink(sink progress.Sink) *Context {
	if sink == nil {
		sink = progress.Discard
	}
	c.sink = sink
	return c
}

// SetRunID overrides the generated run ID. Returns the context for chaining.
func (c *Context) SetRunID(id string) *Context {
	if id != "" {
		c.runID = id
	}
	return c
}

// RunID returns the identifier for this run.
func (c *Context) RunID() string {
	return c.runID
}

// Set stores or overwrites a value under key. Keys are case-sensitive and
// last-write-wins.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Get returns the raw value stored under key. The second return is false
// when the key was never written.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Keys returns every key currently stored, sorted for stable iteration.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Data returns the value stored under key asserted to type T. It returns
// the zero value and false when the key is absent or holds a different
// type, so stages can probe optional upstream outputs safely.
func Data[T any](c *Context, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Cancel requests cooperative cancellation of the run. The executor will
// not start another stage or retry attempt after the signal is set; a stage
// already mid-execution keeps running unless it polls the signal itself.
// Safe to call from any goroutine, more than once.
func (c *Context) Cancel() {
	c.cancel()
}

// Canceled reports whether cancellation has been requested.
func (c *Context) Canceled() bool {
	return c.ctx.Err() != nil
}

// Done returns a channel closed when cancellation is requested. Stages can
// select on it during long-running work.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context returns the underlying context.Context carrying the run's
// cancellation signal, for propagation into a stage's own I/O.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Publish forwards a progress event to the run's sink, stamping the run ID
// and timestamp when the caller left them empty. It never blocks and never
// affects control flow.
func (c *Context) Publish(e progress.Event) {
	if e.RunID == "" {
		e.RunID = c.runID
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.sink.Publish(e)
}
