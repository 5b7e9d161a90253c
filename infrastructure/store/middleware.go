package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

// Middleware wraps a ports.RecordStore to add cross-cutting behavior.
type Middleware func(ports.RecordStore) ports.RecordStore

// Chain applies middleware to base so that the first element is the
// outermost wrapper.
func Chain(base ports.RecordStore, middleware ...Middleware) ports.RecordStore {
	s := base
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			s = middleware[i](s)
		}
	}
	return s
}

// rateLimitedStore throttles record reads and writes with a token bucket.
// Listings and resets are not limited.
type rateLimitedStore struct {
	ports.RecordStore
	limiter *rate.Limiter
}

// RateLimitMiddleware limits Read and Write calls to limit per second with
// the given burst. A non-positive limit disables throttling.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	return func(next ports.RecordStore) ports.RecordStore {
		if limit <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &rateLimitedStore{
			RecordStore: next,
			limiter:     rate.NewLimiter(limit, burst),
		}
	}
}

func (s *rateLimitedStore) Read(ctx context.Context, model, subject string) (domain.ResultRecord, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.ResultRecord{}, ports.NewStoreError(model+"/"+subject, "read", err)
	}
	return s.RecordStore.Read(ctx, model, subject)
}

func (s *rateLimitedStore) Write(ctx context.Context, rec domain.ResultRecord) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return ports.NewStoreError(rec.ModelID+"/"+rec.SubjectID, "write", err)
	}
	return s.RecordStore.Write(ctx, rec)
}

// tracingStore opens a span around every store call.
type tracingStore struct {
	next   ports.RecordStore
	tracer trace.Tracer
}

// TracingMiddleware records one span per store call using tp. A nil tp
// disables tracing.
func TracingMiddleware(tp trace.TracerProvider) Middleware {
	return func(next ports.RecordStore) ports.RecordStore {
		if tp == nil {
			return next
		}
		return &tracingStore{next: next, tracer: tp.Tracer("sleepeval/store")}
	}
}

func (s *tracingStore) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "RecordStore."+op, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *tracingStore) ListModels(ctx context.Context) ([]string, error) {
	ctx, span := s.span(ctx, "ListModels")
	models, err := s.next.ListModels(ctx)
	span.SetAttributes(attribute.Int("store.models", len(models)))
	finishSpan(span, err)
	return models, err
}

func (s *tracingStore) ListSubjects(ctx context.Context, model string) ([]string, error) {
	ctx, span := s.span(ctx, "ListSubjects", attribute.String("store.model", model))
	subjects, err := s.next.ListSubjects(ctx, model)
	span.SetAttributes(attribute.Int("store.subjects", len(subjects)))
	finishSpan(span, err)
	return subjects, err
}

func (s *tracingStore) Read(ctx context.Context, model, subject string) (domain.ResultRecord, error) {
	ctx, span := s.span(ctx, "Read",
		attribute.String("store.model", model),
		attribute.String("store.subject", subject))
	rec, err := s.next.Read(ctx, model, subject)
	if err == nil {
		span.SetAttributes(attribute.Int("store.epochs", rec.Epochs()))
	}
	finishSpan(span, err)
	return rec, err
}

func (s *tracingStore) Write(ctx context.Context, rec domain.ResultRecord) error {
	ctx, span := s.span(ctx, "Write",
		attribute.String("store.model", rec.ModelID),
		attribute.String("store.subject", rec.SubjectID))
	err := s.next.Write(ctx, rec)
	finishSpan(span, err)
	return err
}

func (s *tracingStore) ResetModel(ctx context.Context, model string) error {
	ctx, span := s.span(ctx, "ResetModel", attribute.String("store.model", model))
	err := s.next.ResetModel(ctx, model)
	finishSpan(span, err)
	return err
}

func (s *tracingStore) RemoveModel(ctx context.Context, model string) error {
	ctx, span := s.span(ctx, "RemoveModel", attribute.String("store.model", model))
	err := s.next.RemoveModel(ctx, model)
	finishSpan(span, err)
	return err
}
