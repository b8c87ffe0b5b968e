package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncMetrics records scheduled job runs and per-item sync outcomes.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	items    *prometheus.CounterVec
	skipped  prometheus.Counter
}

// NewSyncMetrics registers the sync metrics on the provided registerer. A nil
// registerer yields a collector that records nothing.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prokipsync_job_duration_seconds",
		Help:    "Duration of scheduled sync jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prokipsync_job_success_total",
		Help: "Successful scheduled sync job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prokipsync_job_failure_total",
		Help: "Failed scheduled sync job executions.",
	}, []string{"job"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prokipsync_sync_items_total",
		Help: "Orders, sales and stock levels handled by sync runs, by outcome.",
	}, []string{"operation", "outcome"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prokipsync_scheduler_cycles_skipped_total",
		Help: "Scheduler cycles skipped because another instance held the lock.",
	})
	reg.MustRegister(duration, success, failure, items, skipped)
	return &SyncMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		items:    items,
		skipped:  skipped,
	}
}

// ObserveDuration records the duration for the named job.
func (m *SyncMetrics) ObserveDuration(job string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (m *SyncMetrics) IncSuccess(job string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (m *SyncMetrics) IncFailure(job string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// AddItems adds n items with the given outcome (success, failed, skipped).
func (m *SyncMetrics) AddItems(operation, outcome string, n int) {
	if m == nil || m.items == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Add(float64(n))
}

func (m *SyncMetrics) IncLockSkipped() {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.Inc()
}

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
