package progress

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/symphovais/voicepipe/internal/testutil"
)

func TestEventString(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "full event",
			event: Event{RunID: "0123456789abcdef", Stage: "transcribe", Message: "uploading audio", Percent: 50},
			want:  "[01234567] transcribe: uploading audio (50%)",
		},
		{
			name:  "short run id kept as is",
			event: Event{RunID: "run-1", Message: "starting", Percent: 0},
			want:  "[run-1] starting (0%)",
		},
		{
			name:  "negative percent omitted",
			event: Event{Stage: "capture", Message: "recording", Percent: -1},
			want:  "capture: recording",
		},
		{
			name:  "no run id no stage",
			event: Event{Message: "done", Percent: 100},
			want:  "done (100%)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.event.String(), tt.want)
		})
	}
}

func TestFuncSink(t *testing.T) {
	var got Event
	sink := Func(func(e Event) { got = e })

	sink.Publish(Event{RunID: "r1", Message: "hello"})

	testutil.AssertEqual(t, got.RunID, "r1")
	testutil.AssertEqual(t, got.Message, "hello")
}

func TestDiscard(t *testing.T) {
	Discard.Publish(Event{Message: "into the void"})
}

func TestMulti(t *testing.T) {
	var a, b int64
	sink := Multi(
		nil,
		Func(func(Event) { atomic.AddInt64(&a, 1) }),
		nil,
		Func(func(Event) { atomic.AddInt64(&b, 1) }),
	)

	sink.Publish(Event{Message: "fan out"})
	sink.Publish(Event{Message: "fan out again"})

	testutil.AssertEqual(t, atomic.LoadInt64(&a), int64(2))
	testutil.AssertEqual(t, atomic.LoadInt64(&b), int64(2))
}

func TestChannelSink(t *testing.T) {
	cs := NewChannel(2)

	cs.Publish(Event{Message: "one"})
	cs.Publish(Event{Message: "two"})
	cs.Publish(Event{Message: "three"}) // buffer full, dropped

	testutil.AssertEqual(t, cs.Dropped(), int64(1))

	first := <-cs.Events()
	second := <-cs.Events()
	testutil.AssertEqual(t, first.Message, "one")
	testutil.AssertEqual(t, second.Message, "two")

	cs.Close()

	if _, ok := <-cs.Events(); ok {
		t.Fatal("expected events channel to be closed")
	}
}

func TestChannelSinkDefaultCapacity(t *testing.T) {
	cs := NewChannel(0)
	testutil.AssertEqual(t, cap(cs.Events()), 16)
}

func TestChannelSinkPublishAfterClose(t *testing.T) {
	cs := NewChannel(4)
	cs.Close()
	cs.Close() // idempotent

	cs.Publish(Event{Message: "too late"})

	testutil.AssertEqual(t, cs.Dropped(), int64(0))
}

func TestChannelSinkConcurrentPublish(t *testing.T) {
	cs := NewChannel(128)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			cs.Publish(Event{Message: "tick", Time: time.Now()})
		}
	}()
	for i := 0; i < 64; i++ {
		cs.Publish(Event{Message: "tock", Time: time.Now()})
	}
	<-done

	cs.Close()

	var n int
	for range cs.Events() {
		n++
	}
	testutil.AssertEqual(t, n, 128)
	testutil.AssertEqual(t, cs.Dropped(), int64(0))
}
