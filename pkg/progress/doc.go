// Package progress reports pipeline execution progress to pluggable sinks.
//
// A progress Event describes one step of a run: which run it belongs to,
// which stage produced it, a human-readable message, and an optional
// percentage. Events are delivered through the Sink interface, which the
// execution engine calls after every stage and which stages may call
// themselves for finer-grained updates.
//
// # Sinks
//
// The package ships three sink implementations:
//
//   - Func adapts a plain function into a Sink.
//   - ChannelSink buffers events on a channel for consumption by another
//     goroutine, dropping events rather than blocking when full.
//   - WriterSink renders events as text lines and writes them to an
//     io.Writer from a background goroutine.
//
// Multi fans an event out to several sinks, and Discard swallows events
// for runs that nobody is watching.
//
// # Delivery Guarantees
//
// Publish must never block the publishing goroutine. Both ChannelSink and
// WriterSink honor this by dropping events when their buffers are full and
// counting the drops, so a slow consumer can stall reporting but never the
// run itself.
//
// # Basic Usage
//
//	sink := progress.NewWriter(os.Stdout)
//	defer sink.Close()
//
//	sink.Publish(progress.Event{
//		RunID:   "3f2a91c4",
//		Stage:   "transcribe",
//		Message: "uploading audio",
//		Percent: 50,
//	})
package progress
