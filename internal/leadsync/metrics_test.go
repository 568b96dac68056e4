package leadsync

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountOutcomesAndRetries(t *testing.T) {
	h := newHarness(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h.orch.metrics = m
	h.source.leads = providerLeads(4)
	h.source.failures = []error{transientErr()}
	h.store.failEmails["lead003@example.com"] = errWrite

	_, err := h.orch.SyncCampaign(context.Background(), h.campaign.ID, live)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.leads.WithLabelValues("instantly", "live", outcomeImported)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.leads.WithLabelValues("instantly", "live", outcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pageRetries.WithLabelValues("instantly")))

	count, err := testutil.GatherAndCount(reg, "bluereach_leadsync_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.countLeads("instantly", ModeLive, outcomeImported, 1)
	m.pageRetry("instantly")
	m.aborted("instantly", KindCampaign)
}
