package progress

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// WriterConfig holds configuration options for WriterSink.
type WriterConfig struct {
	// FlushInterval is how often buffered lines are flushed to the
	// underlying writer.
	// Default: 500ms
	FlushInterval time.Duration

	// BufferLines is the number of lines that triggers an immediate flush.
	// Default: 64
	BufferLines int

	// Format renders an event as a single line, without the trailing
	// newline. Defaults to Event.String.
	Format func(Event) string

	// OnError is called when writing to the underlying writer fails.
	OnError func(error)
}

// DefaultWriterConfig returns a default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		FlushInterval: 500 * time.Millisecond,
		BufferLines:   64,
	}
}

// WriterSink renders events as text lines and writes them to an io.Writer
// from a background goroutine. Publish never blocks; when the internal
// buffer is full, events are dropped and counted.
type WriterSink struct {
	underlying io.Writer
	config     WriterConfig

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	closed   int32 // atomic
	dropped  int64 // atomic
	closeErr error
}

// NewWriter creates a WriterSink with default configuration.
func NewWriter(w io.Writer) *WriterSink {
	return NewWriterWithConfig(w, DefaultWriterConfig())
}

// NewWriterWithConfig creates a WriterSink with the specified configuration.
func NewWriterWithConfig(w io.Writer, config WriterConfig) *WriterSink {
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if config.BufferLines <= 0 {
		config.BufferLines = DefaultWriterConfig().BufferLines
	}
	if config.Format == nil {
		config.Format = Event.String
	}

	ws := &WriterSink{
		underlying: w,
		config:     config,
		events:     make(chan Event, config.BufferLines*2),
		done:       make(chan struct{}),
	}

	ws.wg.Add(1)
	go ws.loop()

	return ws
}

// Publish implements the Sink interface. It never blocks.
func (ws *WriterSink) Publish(e Event) {
	if atomic.LoadInt32(&ws.closed) != 0 {
		return
	}
	select {
	case ws.events <- e:
	default:
		atomic.AddInt64(&ws.dropped, 1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (ws *WriterSink) Dropped() int64 {
	return atomic.LoadInt64(&ws.dropped)
}

// Close stops the background goroutine after flushing buffered events.
// It returns the error from the final flush, if any. Safe to call more
// than once.
func (ws *WriterSink) Close() error {
	if !atomic.CompareAndSwapInt32(&ws.closed, 0, 1) {
		return nil
	}
	close(ws.done)
	ws.wg.Wait()
	return ws.closeErr
}

// loop accumulates formatted lines and flushes them on a timer, when the
// line budget is reached, and once more on shutdown.
func (ws *WriterSink) loop() {
	defer ws.wg.Done()

	ticker := time.NewTicker(ws.config.FlushInterval)
	defer ticker.Stop()

	lines := make([]string, 0, ws.config.BufferLines)

	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		_, err := io.WriteString(ws.underlying, strings.Join(lines, "\n")+"\n")
		lines = lines[:0]
		if err != nil && ws.config.OnError != nil {
			ws.config.OnError(err)
		}
		return err
	}

	for {
		select {
		case e := <-ws.events:
			lines = append(lines, ws.config.Format(e))
			if len(lines) >= ws.config.BufferLines {
				_ = flush()
			}

		case <-ticker.C:
			_ = flush()

		case <-ws.done:
			// Drain anything still queued, then flush one last time.
			for {
				select {
				case e := <-ws.events:
					lines = append(lines, ws.config.Format(e))
				default:
					ws.closeErr = flush()
					return
				}
			}
		}
	}
}
