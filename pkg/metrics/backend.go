package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BackendMetrics observes backend operations: bulk updates, queries and
// their outcomes. This type is optional — a nil *BackendMetrics disables
// collection with zero overhead, so backends call its methods without
// nil checks.
type BackendMetrics struct {
	updateEvents    *prometheus.CounterVec
	updateDuration  *prometheus.HistogramVec
	updateRetries   *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	entriesReturned *prometheus.CounterVec
}

var (
	backendOnce   sync.Once
	backendShared *BackendMetrics
)

// NewBackendMetrics returns the Prometheus-backed BackendMetrics
// observer. The collectors are registered once and shared by every
// backend handle; the "backend" label keeps their series apart.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBackendMetrics() *BackendMetrics {
	if !IsEnabled() {
		return nil
	}

	backendOnce.Do(func() {
		backendShared = newBackendMetrics(GetRegistry())
	})
	return backendShared
}

func newBackendMetrics(reg *prometheus.Registry) *BackendMetrics {
	return &BackendMetrics{
		updateEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbh_backend_update_events_total",
				Help: "Total number of change events accepted by bulk updates",
			},
			[]string{"backend"},
		),
		updateDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbh_backend_update_duration_seconds",
				Help:    "Duration of bulk update operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "outcome"}, // "ok" or "error"
		),
		updateRetries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbh_backend_update_retries_total",
				Help: "Total number of bulk updates classified retry-later",
			},
			[]string{"backend"},
		),
		queryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rbh_backend_query_duration_seconds",
				Help:    "Duration of filter query dispatch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "outcome"},
		),
		entriesReturned: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbh_backend_entries_returned_total",
				Help: "Total number of entries yielded by query iterators",
			},
			[]string{"backend"},
		),
	}
}

// RecordUpdate records a completed bulk update with the number of
// accepted events and its outcome.
func (m *BackendMetrics) RecordUpdate(backend string, events int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := outcomeLabel(err)
	m.updateDuration.WithLabelValues(backend, outcome).Observe(duration.Seconds())
	if err == nil {
		m.updateEvents.WithLabelValues(backend).Add(float64(events))
	}
}

// RecordRetry records a bulk update classified retry-later.
func (m *BackendMetrics) RecordRetry(backend string) {
	if m == nil {
		return
	}
	m.updateRetries.WithLabelValues(backend).Inc()
}

// RecordQuery records the dispatch of a filter query.
func (m *BackendMetrics) RecordQuery(backend string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(backend, outcomeLabel(err)).Observe(duration.Seconds())
}

// RecordEntries records entries yielded by a query iterator.
func (m *BackendMetrics) RecordEntries(backend string, count int) {
	if m == nil {
		return
	}
	m.entriesReturned.WithLabelValues(backend).Add(float64(count))
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
