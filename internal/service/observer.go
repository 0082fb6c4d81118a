package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/logger"
	"github.com/Strob0t/circulation/internal/validation"
)

// LogObserver writes recorded failures at debug level and applied overrides
// as info-level audit records.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Failed implements validation.Observer.
func (o LogObserver) Failed(ctx context.Context, operation string, cat validation.Category, cause failure.Cause) {
	o.logger().DebugContext(ctx, "circulation rule failed",
		"operation", operation, "category", string(cat), "cause", cause.Error())
}

// Overridden implements validation.Observer.
func (o LogObserver) Overridden(ctx context.Context, ap override.Applied) {
	o.logger().InfoContext(ctx, "circulation block overridden",
		"operation", ap.Operation, "block", string(ap.Block), "operator_id", ap.OperatorID, "comment", ap.Comment,
		logger.Audit())
}

type observers []validation.Observer

// Observers fans notifications out to every non-nil observer.
func Observers(obs ...validation.Observer) validation.Observer {
	var out observers
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (fan observers) Failed(ctx context.Context, operation string, cat validation.Category, cause failure.Cause) {
	for _, o := range fan {
		o.Failed(ctx, operation, cat, cause)
	}
}

func (fan observers) Overridden(ctx context.Context, ap override.Applied) {
	for _, o := range fan {
		o.Overridden(ctx, ap)
	}
}
