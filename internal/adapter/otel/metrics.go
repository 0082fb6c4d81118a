package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/validation"
)

const meterName = "circulation"

// Metrics holds the circulation metric instruments.
type Metrics struct {
	RuleFailures     metric.Int64Counter
	OverridesApplied metric.Int64Counter
}

// NewMetrics creates all metric instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RuleFailures, err = meter.Int64Counter("circulation.rule.failures",
		metric.WithDescription("Number of circulation rule failures by operation and category"))
	if err != nil {
		return nil, err
	}

	m.OverridesApplied, err = meter.Int64Counter("circulation.overrides.applied",
		metric.WithDescription("Number of blocks bypassed by a permitted override"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Observer counts pipeline events and adds them to the active span.
type Observer struct {
	metrics *Metrics
}

// NewObserver returns a validation.Observer backed by m.
func NewObserver(m *Metrics) *Observer {
	return &Observer{metrics: m}
}

var _ validation.Observer = (*Observer)(nil)

// Failed implements validation.Observer.
func (o *Observer) Failed(ctx context.Context, operation string, cat validation.Category, _ failure.Cause) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("category", string(cat)),
	}
	o.metrics.RuleFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	trace.SpanFromContext(ctx).AddEvent("rule failed", trace.WithAttributes(attrs...))
}

// Overridden implements validation.Observer.
func (o *Observer) Overridden(ctx context.Context, ap override.Applied) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", ap.Operation),
		attribute.String("block", string(ap.Block)),
	}
	o.metrics.OverridesApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
	trace.SpanFromContext(ctx).AddEvent("override applied", trace.WithAttributes(
		append(attrs, attribute.String("operator", ap.OperatorID))...))
}
