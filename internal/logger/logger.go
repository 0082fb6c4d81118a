// Package logger provides structured logging setup for the circulation service.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/circulation/internal/config"
)

const (
	defaultAsyncBuffer = 4096
	asyncWorkers       = 2
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record and the
// request ID from the context when one is present. The returned Closer must be
// called on shutdown to flush the async handler.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		buffer := cfg.AsyncBuffer
		if buffer < 1 {
			buffer = defaultAsyncBuffer
		}
		async := NewAsyncHandler(handler, buffer, asyncWorkers)
		handler = async
		closer = async
	}
	// Context attributes are resolved before records reach the async queue.
	handler = &contextHandler{inner: handler}

	return slog.New(handler).With("service", cfg.Service), closer
}

// contextHandler copies the request ID from the context onto each record.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := RequestID(ctx); id != "" {
		rec.AddAttrs(slog.String("request_id", id))
	}
	if tenant := Tenant(ctx); tenant != "" {
		rec.AddAttrs(slog.String("tenant", tenant))
	}
	return h.inner.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
