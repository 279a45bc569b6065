package progress

import (
	"fmt"
	"time"
)

// Event is one progress notification from a pipeline run. Stage is empty for
// run-level events. Percent is 0-100, or negative when unknown.
type Event struct {
	RunID   string
	Stage   string
	Message string
	Percent int
	Time    time.Time
}

// String renders the event as a single human-readable line.
func (e Event) String() string {
	s := e.Message
	if e.Stage != "" {
		s = e.Stage + ": " + s
	}
	if e.Percent >= 0 {
		s = fmt.Sprintf("%s (%d%%)", s, e.Percent)
	}
	if id := shortID(e.RunID); id != "" {
		s = "[" + id + "] " + s
	}
	return s
}

// Sink receives progress events. Publish must not block: a slow or stuck
// consumer may lose events, never stall the producing run.
type Sink interface {
	Publish(Event)
}

// Func adapts a plain function into a Sink.
type Func func(Event)

// Publish implements the Sink interface for Func.
func (f Func) Publish(e Event) {
	f(e)
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
