package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/circulation/internal/domain"
)

const tracerName = "circulation"

// StartOperationSpan starts a span for one circulation operation.
func StartOperationSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "circulation."+operation,
		trace.WithAttributes(append(attrs, attribute.String("circulation.operation", operation))...),
	)
}

// EndSpan ends span with the outcome of the operation. A refusal by the
// circulation rules is a normal outcome and only marks the span as refused.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		span.SetAttributes(attribute.Bool("circulation.refused", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
