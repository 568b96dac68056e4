package leadsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded per lead.
const (
	outcomeImported = "imported"
	outcomeUpdated  = "updated"
	outcomeFailed   = "failed"
	outcomeNotFound = "not_found"
	outcomeSkipped  = "skipped"
)

// Metrics are the Prometheus series of the orchestrator. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	leads       *prometheus.CounterVec
	pageRetries *prometheus.CounterVec
	aborts      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the orchestrator series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluereach",
			Subsystem: "leadsync",
			Name:      "leads_total",
			Help:      "Provider lead records processed by outcome.",
		}, []string{"provider", "mode", "outcome"}),
		pageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluereach",
			Subsystem: "leadsync",
			Name:      "page_retries_total",
			Help:      "Provider page fetches retried after a transient error.",
		}, []string{"provider"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluereach",
			Subsystem: "leadsync",
			Name:      "aborted_runs_total",
			Help:      "Runs stopped after repeated fetch failures.",
		}, []string{"provider", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bluereach",
			Subsystem: "leadsync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync, resync and backfill runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind", "mode"}),
	}
	reg.MustRegister(m.leads, m.pageRetries, m.aborts, m.duration)
	return m
}

func (m *Metrics) countLeads(provider string, mode Mode, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.leads.WithLabelValues(provider, string(mode), outcome).Add(float64(n))
}

func (m *Metrics) pageRetry(provider string) {
	if m == nil {
		return
	}
	m.pageRetries.WithLabelValues(provider).Inc()
}

func (m *Metrics) aborted(provider, kind string) {
	if m == nil {
		return
	}
	m.aborts.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) observe(kind string, mode Mode, started time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind, string(mode)).Observe(time.Since(started).Seconds())
}
