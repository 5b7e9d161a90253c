package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// recordingSpan captures what the observer writes to a span.
type recordingSpan struct {
	noop.Span
	mu     sync.Mutex
	name   string
	attrs  map[attribute.Key]attribute.Value
	events []string
	errs   []error
	code   codes.Code
	ended  bool
}

func (s *recordingSpan) setAttrs(kvs []attribute.KeyValue) {
	for _, kv := range kvs {
		s.attrs[kv.Key] = kv.Value
	}
}

func (s *recordingSpan) SetAttributes(kvs ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAttrs(kvs)
}

func (s *recordingSpan) AddEvent(name string, opts ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := trace.NewEventConfig(opts...)
	parts := lo.Map(cfg.Attributes(), func(kv attribute.KeyValue, _ int) string {
		return string(kv.Key) + ":" + kv.Value.Emit()
	})
	s.events = append(s.events, name+"["+strings.Join(parts, " ")+"]")
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	span := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	cfg := trace.NewSpanStartConfig(opts...)
	span.setAttrs(cfg.Attributes())

	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
	name   string
}

func (p *recordingProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.name = name
	return p.tracer
}

func newRecordingObserver() (*OTelObserver, *recordingProvider) {
	tp := &recordingProvider{tracer: &recordingTracer{}}
	return NewOTelObserver(tp), tp
}

func TestOTelObserver_Success(t *testing.T) {
	obs, tp := newRecordingObserver()
	assert.Equal(t, TracerName, tp.name)

	ctx := obs.Start(context.Background(), "voters", map[string]string{"run_id": "r1"})
	obs.Event(ctx, "subject.voted", map[string]string{"subject": "SC4001"})
	obs.Finish(ctx, "voters", 1500*time.Millisecond, nil)

	require.Len(t, tp.tracer.spans, 1)
	span := tp.tracer.spans[0]
	assert.Equal(t, "Evaluation.voters", span.name)
	assert.Equal(t, "r1", span.attrs["run_id"].AsString())
	assert.Equal(t, "voters", span.attrs["report.operation"].AsString())
	assert.Equal(t, int64(1500), span.attrs["report.elapsed_ms"].AsInt64())
	assert.Equal(t, []string{"subject.voted[subject:SC4001]"}, span.events)
	assert.Equal(t, codes.Ok, span.code)
	assert.True(t, span.ended)
	assert.Empty(t, span.errs)
}

func TestOTelObserver_Failure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantEvents []string
	}{
		{
			name:       "plain error",
			err:        errors.New("disk full"),
			wantEvents: nil,
		},
		{
			name:       "record error",
			err:        fmt.Errorf("voting: %w", domain.NewRecordError("SC4002", "", "SOFT-V", domain.ErrMissingData)),
			wantEvents: []string{"record.failed[subject:SC4002 model: step:SOFT-V]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, tp := newRecordingObserver()
			ctx := obs.Start(context.Background(), "voters", nil)
			obs.Finish(ctx, "voters", time.Second, tt.err)

			span := tp.tracer.spans[0]
			assert.Equal(t, codes.Error, span.code)
			assert.Equal(t, []error{tt.err}, span.errs)
			assert.Equal(t, tt.wantEvents, span.events)
			assert.True(t, span.ended)
		})
	}
}

func TestOTelObserver_GlobalProvider(t *testing.T) {
	obs := NewOTelObserver(nil)
	assert.NotPanics(t, func() {
		ctx := obs.Start(context.Background(), "table", map[string]string{"run_id": "x"})
		obs.Event(ctx, "noop", nil)
		obs.Finish(ctx, "table", 0, errors.New("boom"))
	})
}

func TestToAttributes(t *testing.T) {
	attrs := toAttributes(map[string]string{"b": "2", "a": "1"})
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("a"), attrs[0].Key)
	assert.Equal(t, "2", attrs[1].Value.AsString())
	assert.Empty(t, toAttributes(nil))
}
