// Package middleware provides cross-cutting concerns for the evaluation engine.
package middleware

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

// TracerName identifies the spans created by OTelObserver.
const TracerName = "sleepeval"

var _ ports.ReportObserver = (*OTelObserver)(nil)

// OTelObserver implements observability for report operations using
// OpenTelemetry tracing. Each operation gets one span; notable points such
// as a voted subject become span events, and failures mark the span with
// an error status.
type OTelObserver struct {
	tracer trace.Tracer
}

// NewOTelObserver creates an observer that traces through tp. A nil tp
// uses the global tracer provider.
func NewOTelObserver(tp trace.TracerProvider) *OTelObserver {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelObserver{tracer: tp.Tracer(TracerName)}
}

// Start implements the ReportObserver interface. It starts the operation
// span and returns a context carrying it.
func (o *OTelObserver) Start(ctx context.Context, operation string, attrs map[string]string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "Evaluation."+operation,
		trace.WithAttributes(attribute.String("report.operation", operation)),
		trace.WithAttributes(toAttributes(attrs)...),
	)
	return ctx
}

// Event implements the ReportObserver interface by adding an event to the
// span in ctx.
func (o *OTelObserver) Event(ctx context.Context, name string, attrs map[string]string) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attrs)...))
}

// Finish implements the ReportObserver interface. It records the outcome
// on the span in ctx and ends it.
func (o *OTelObserver) Finish(ctx context.Context, operation string, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(
		attribute.String("report.operation", operation),
		attribute.Int64("report.elapsed_ms", elapsed.Milliseconds()),
	)

	if err == nil {
		span.SetStatus(codes.Ok, "report operation completed")
		return
	}

	var recErr *domain.RecordError
	if errors.As(err, &recErr) {
		span.AddEvent("record.failed", trace.WithAttributes(
			attribute.String("subject", recErr.Subject),
			attribute.String("model", recErr.Model),
			attribute.String("step", recErr.Operation),
		))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// toAttributes converts a label map into attributes in key order.
func toAttributes(attrs map[string]string) []attribute.KeyValue {
	keys := lo.Keys(attrs)
	slices.Sort(keys)
	return lo.Map(keys, func(k string, _ int) attribute.KeyValue {
		return attribute.String(k, attrs[k])
	})
}
