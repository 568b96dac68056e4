package webhook

import (
	"bluereach_backend/internal/reconcile"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
	outcomeFailed  = "failed"
)

// Metrics counts webhook deliveries. A nil *Metrics records nothing.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics registers the webhook series on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluereach",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Provider webhook deliveries by outcome.",
		}, []string{"provider", "outcome"}),
	}
	reg.MustRegister(m.events)
	return m
}

func (m *Metrics) event(p reconcile.Provider, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(p), outcome).Inc()
}
