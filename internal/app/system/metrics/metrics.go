// Package metrics holds the Prometheus collectors fleetdesk exports on
// /metrics. Every method is safe on a nil *Metrics so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetdesk"

// Metrics groups the application collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	decisions  *prometheus.CounterVec
	candidates prometheus.Histogram
	revoked    prometheus.Counter
	expired    prometheus.Counter

	jobDuration *prometheus.HistogramVec
	jobSuccess  *prometheus.CounterVec
	jobFailure  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegisterer(reg, reg)
}

// NewWithRegisterer registers the collectors on reg. g serves Handler.
func NewWithRegisterer(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_decisions_total",
			Help:      "Admin decisions on orders.",
		}, []string{"decision"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_candidates",
			Help:      "Eligible drivers found per broadcast.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		revoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Session tokens revoked by admins, status changes or cleanup.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_expired_total",
			Help:      "Broadcast assignments that timed out.",
		}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of background jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_success_total",
			Help:      "Successful background job runs.",
		}, []string{"job"}),
		jobFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failure_total",
			Help:      "Failed background job runs.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.decisions, m.candidates, m.revoked, m.expired,
		m.jobDuration, m.jobSuccess, m.jobFailure)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// OrderDecision counts an admin decision (approved, rejected, reversed,
// assigned, cancelled, status_updated, deleted).
func (m *Metrics) OrderDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(label(decision)).Inc()
}

// BroadcastCandidates records how many drivers a broadcast reached.
func (m *Metrics) BroadcastCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// SessionsRevoked adds n revoked session tokens.
func (m *Metrics) SessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.revoked.Add(float64(n))
}

// AssignmentsExpired adds n expired assignments.
func (m *Metrics) AssignmentsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

// ObserveJob records one run of a background job.
func (m *Metrics) ObserveJob(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	job = label(job)
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.jobFailure.WithLabelValues(job).Inc()
		return
	}
	m.jobSuccess.WithLabelValues(job).Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
