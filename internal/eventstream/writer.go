package eventstream

import (
	"fmt"
	"io"
	"sync"

	"repolens/internal/util/jsonutil"
)

// linePrefix tags structured event lines. Anything on the stream without the
// prefix is a raw status line and the consumer surfaces it as a server log.
const linePrefix = "EVENT: "

// Writer frames StreamEvents onto a byte stream, one tagged line per event.
// If the underlying writer supports flushing (http.Flusher does), every event
// is flushed immediately so the consumer sees progress as it happens, not
// when some intermediate buffer fills.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	flush  func()
	closed bool
}

type flusher interface {
	Flush()
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// Emit serializes and writes one event. Returns an error when the consumer
// has gone away (the write fails) or after Close; producers treat that as a
// signal to stop.
func (w *Writer) Emit(ev StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("eventstream: write on closed stream")
	}
	if ev.V == 0 {
		ev.V = Version
	}
	b, err := jsonutil.MarshalNoEscape(ev)
	if err != nil {
		return fmt.Errorf("eventstream: encode %s event: %w", ev.Type, err)
	}
	if _, err := io.WriteString(w.w, linePrefix+string(b)+"\n"); err != nil {
		return err
	}
	if w.flush != nil {
		w.flush()
	}
	return nil
}

// Close marks the stream terminated. Idempotent; later Emits fail. The
// producer calls this from a deferred cleanup so the stream ends exactly once
// on every code path.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
