// Package middleware provides cross-cutting concerns for the evaluation engine.
package middleware

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-sleepeval/internal/ports"
)

// Namespace prefixes every exported metric.
const Namespace = "sleepeval"

// labelAll fills a label the caller did not set.
const labelAll = "all"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It tracks report operation latency, record I/O and per-subject accuracy
// for the evaluation engine.
//
// Metrics are registered on a private registry so several instances can
// coexist in one process. A batch run exports them with WriteToTextfile.
type PrometheusMetrics struct {
	registry         *prometheus.Registry
	executionLatency *prometheus.HistogramVec
	eventCounter     *prometheus.CounterVec
	subjectAccuracy  *prometheus.GaugeVec
	systemGauges     *prometheus.GaugeVec
	accuracyValues   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with all
// metrics registered on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		executionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "execution_duration_seconds",
				Help:      "Execution time of report operations and record I/O.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "model", "status"},
		),
		eventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "events_total",
				Help:      "Total number of report operations run and records read or written.",
			},
			[]string{"event", "model", "status"},
		),

		// Accuracy metrics. Values are percentages in [0, 100].
		subjectAccuracy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "subject_accuracy_percent",
				Help:      "Per-subject accuracy of a model or derived result set.",
			},
			[]string{"model", "subject"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "system_state",
				Help:      "Current values reported by the evaluation engine.",
			},
			[]string{"metric", "model"},
		),
		accuracyValues: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "accuracy_percent",
				Help:      "Distribution of accuracy values across subjects.",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"metric", "model"},
		),
	}
}

// Registry returns the registry the metrics are registered on, e.g. for
// serving them with promhttp.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// WriteToTextfile writes every collected metric to path in the Prometheus
// text format, suitable for the node exporter textfile collector.
func (pm *PrometheusMetrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, pm.registry); err != nil {
		return ports.NewMetricsError(path, "write_textfile", err)
	}
	return nil
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.executionLatency.
		WithLabelValues(operation, labelOr(labels, "model", labelAll), labelOr(labels, "status", "success")).
		Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// the event counter. Counters cannot decrease, so negative values are
// ignored.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	if value < 0 {
		return
	}
	pm.eventCounter.
		WithLabelValues(metric, labelOr(labels, "model", labelAll), labelOr(labels, "status", "success")).
		Add(value)
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values. Per-subject accuracies go to their own gauge;
// everything else is a system gauge.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	model := labelOr(labels, "model", labelAll)
	switch metric {
	case "subject_accuracy":
		pm.subjectAccuracy.WithLabelValues(model, labelOr(labels, "subject", labelAll)).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric, model).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in the accuracy histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	pm.accuracyValues.WithLabelValues(metric, labelOr(labels, "model", labelAll)).Observe(value)
}

// labelOr returns labels[key], or fallback when it is unset or blank.
func labelOr(labels map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(labels[key]); v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
