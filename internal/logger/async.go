package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes and stops a handler that buffers records.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncCore is the buffering machinery shared by an AsyncHandler and every
// handler derived from it via WithAttrs/WithGroup: one channel, one worker
// pool, one drop counter.
type asyncCore struct {
	ch      chan queuedRecord
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// queuedRecord pairs a record with the handler variant that enqueued it, so
// attrs and groups added after wrapping still reach the output.
type queuedRecord struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler decouples log emission from log writing: Handle enqueues onto
// a bounded channel and workers write in the background. A full channel drops
// the record rather than blocking the caller; Close reports the total.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler wraps inner with a buffer of chanSize records drained by
// the given number of workers.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	if chanSize <= 0 {
		chanSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	core := &asyncCore{ch: make(chan queuedRecord, chanSize)}
	for range workers {
		core.wg.Add(1)
		go func() {
			defer core.wg.Done()
			for q := range core.ch {
				_ = q.h.Handle(context.Background(), q.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, core: core}
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the buffer is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.core.ch <- queuedRecord{h: h.inner, rec: rec}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler sharing this handler's buffer and workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

// WithGroup derives a handler sharing this handler's buffer and workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount returns how many records were discarded on a full buffer.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close stops accepting records and blocks until the buffer is drained.
func (h *AsyncHandler) Close() {
	close(h.core.ch)
	h.core.wg.Wait()
	if n := h.core.dropped.Load(); n > 0 {
		rec := slog.Record{Level: slog.LevelWarn, Message: "async log buffer overflowed"}
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.inner.Handle(context.Background(), rec)
	}
}
