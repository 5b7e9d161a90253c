package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-sleepeval/internal/domain"
)

// RecordStore defines the interface for reading and writing persisted
// per-subject result records laid out as <root>/<model>/<subject>.
// Implementations own the on-disk encoding; callers only see normalized
// domain.ResultRecord values.
type RecordStore interface {
	// ListModels returns the model identifiers (directory names) in
	// ascending order.
	ListModels(ctx context.Context) ([]string, error)

	// ListSubjects returns the subject identifiers stored for model in
	// ascending order.
	ListSubjects(ctx context.Context, model string) ([]string, error)

	// Read loads and normalizes one record. The returned record has its
	// SubjectID and ModelID set and Accuracy expressed as a percentage.
	Read(ctx context.Context, model, subject string) (domain.ResultRecord, error)

	// Write persists rec under rec.ModelID/rec.SubjectID, creating the
	// model directory when needed.
	Write(ctx context.Context, rec domain.ResultRecord) error

	// ResetModel deletes everything stored for model and recreates an
	// empty model directory.
	ResetModel(ctx context.Context, model string) error

	// RemoveModel deletes everything stored for model. Removing a model
	// that does not exist is not an error.
	RemoveModel(ctx context.Context, model string) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus, OpenTelemetry, or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like records read, files written, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like ensemble accuracy per subject.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like per-subject accuracy.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// ReportObserver receives lifecycle callbacks around each report
// operation. Implementations typically open a trace span in Start and
// close it in Finish.
type ReportObserver interface {
	// Start is called before the operation runs. The returned context
	// carries any span created by the observer.
	Start(ctx context.Context, operation string, attrs map[string]string) context.Context

	// Event records a notable point inside the running operation.
	Event(ctx context.Context, name string, attrs map[string]string)

	// Finish is called once after the operation completes or fails.
	Finish(ctx context.Context, operation string, elapsed time.Duration, err error)
}
