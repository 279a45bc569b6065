package testutil

import (
	"bytes"
	"sync"
	"time"
)

// MockClock is a controllable clock for tests that would otherwise need
// real sleeps. It satisfies any interface with a Now() time.Time method.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock starting at the given time, or at the
// current time when start is the zero value.
func NewMockClock(start time.Time) *MockClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &MockClock{now: start}
}

// Now returns the current mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set pins the mock clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// MockWriter is an io.Writer double that records everything written and can
// be told to fail on demand.
type MockWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	failN  int
	err    error
}

// NewMockWriter creates an empty MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements io.Writer. When FailOn(n, err) has been set, the nth
// write returns err instead of writing.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writes++
	if mw.failN > 0 && mw.writes == mw.failN {
		return 0, mw.err
	}
	return mw.buf.Write(p)
}

// FailOn makes the nth subsequent Write call return err.
func (mw *MockWriter) FailOn(n int, err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.failN = n
	mw.err = err
}

// String returns everything written so far.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Writes returns the number of Write calls observed.
func (mw *MockWriter) Writes() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writes
}
