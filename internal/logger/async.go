package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AuditKey marks a record as part of the override audit trail.
const AuditKey = "audit"

// Audit returns the attribute that marks a record as an audit record.
func Audit() slog.Attr { return slog.Bool(AuditKey, true) }

// Closer flushes and stops the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// asyncQueue is shared by an AsyncHandler and every handler derived from it.
type asyncQueue struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type queued struct {
	inner slog.Handler
	rec   slog.Record
}

// AsyncHandler hands records to background workers. When the buffer is full
// ordinary records are dropped and counted, while audit records wait for room.
// After Close records are written synchronously.
type AsyncHandler struct {
	inner slog.Handler
	q     *asyncQueue
	audit bool // set when an audit attribute was bound via WithAttrs
}

// NewAsyncHandler creates an AsyncHandler with the given buffer size and
// worker count.
func NewAsyncHandler(inner slog.Handler, buffer, workers int) *AsyncHandler {
	q := &asyncQueue{ch: make(chan queued, buffer)}
	for range workers {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for item := range q.ch {
				_ = item.inner.Handle(context.Background(), item.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, q: q}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		return h.inner.Handle(ctx, rec)
	}

	item := queued{inner: h.inner, rec: rec.Clone()}
	if h.audit || isAudit(rec) {
		select {
		case h.q.ch <- item:
		case <-ctx.Done():
			// The request is gone; keep the audit record anyway.
			return h.inner.Handle(context.WithoutCancel(ctx), rec)
		}
		return nil
	}
	select {
	case h.q.ch <- item:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func isAudit(rec slog.Record) bool { //nolint:gocritic // slog.Record is passed by value throughout slog
	found := false
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == AuditKey && a.Value.Kind() == slog.KindBool && a.Value.Bool() {
			found = true
			return false
		}
		return true
	})
	return found
}

// WithAttrs returns a handler sharing the same queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	audit := h.audit
	for _, a := range attrs {
		if a.Key == AuditKey && a.Value.Kind() == slog.KindBool && a.Value.Bool() {
			audit = true
		}
	}
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q, audit: audit}
}

// WithGroup returns a handler sharing the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q, audit: h.audit}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.q.dropped.Load()
}

// Close drains the queue and stops the workers. It is safe to call twice.
func (h *AsyncHandler) Close() {
	h.q.mu.Lock()
	if h.q.closed {
		h.q.mu.Unlock()
		return
	}
	h.q.closed = true
	close(h.q.ch)
	h.q.mu.Unlock()
	h.q.wg.Wait()
}
