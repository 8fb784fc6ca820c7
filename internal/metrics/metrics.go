// Package metrics registers the Prometheus instruments for the
// transformation service.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the service instruments. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	CompletionAttempts *prometheus.CounterVec

	PlaceholderVersions prometheus.Counter
	WarningsTotal       *prometheus.CounterVec
}

// New creates and registers the instruments. sync.Once keeps repeated
// calls from tripping duplicate-registration panics.
//
// All metrics are prefixed with "texttransform_":
//   - texttransform_requests_total{operation,status}
//   - texttransform_request_duration_seconds{operation}
//   - texttransform_completion_attempts_total{outcome}
//   - texttransform_placeholder_versions_total
//   - texttransform_warnings_total{code}
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "texttransform_requests_total",
					Help: "Total number of transformation requests by operation and HTTP status",
				},
				[]string{"operation", "status"},
			),

			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "texttransform_request_duration_seconds",
					Help:    "End-to-end transformation request duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
				},
				[]string{"operation"},
			),

			CompletionAttempts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "texttransform_completion_attempts_total",
					Help: "Completion backend attempts by outcome",
				},
				[]string{"outcome"}, // "ok", "retry", "error", "empty"
			),

			PlaceholderVersions: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "texttransform_placeholder_versions_total",
					Help: "Versions filled with original text because the model response was short",
				},
			),

			WarningsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "texttransform_warnings_total",
					Help: "Response warnings by code",
				},
				[]string{"code"},
			),
		}
	})

	return globalMetrics
}

// RecordRequest records one finished request.
func (m *Metrics) RecordRequest(operation string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordCompletionAttempt records one backend call outcome.
func (m *Metrics) RecordCompletionAttempt(outcome string) {
	if m == nil {
		return
	}
	m.CompletionAttempts.WithLabelValues(outcome).Inc()
}

// RecordPlaceholders records versions padded with the original text.
func (m *Metrics) RecordPlaceholders(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PlaceholderVersions.Add(float64(n))
}

// RecordWarning records one response warning.
func (m *Metrics) RecordWarning(code string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(code).Inc()
}
