package instantly

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport := httpclient.New(httpclient.Options{Name: "instantly", BaseURL: srv.URL})
	return New(transport, provider.MustLoadInterestMap())
}

var target = provider.Target{Provider: reconcile.ProviderInstantly, ProviderCampaignID: "camp-1", APIKey: "secret"}

func TestListLeadsSendsPagingBodyAndMapsInterest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, listLeadsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body listLeadsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, listLeadsRequest{Campaign: "camp-1", Limit: 100, Skip: 200}, body)

		_, _ = w.Write([]byte(`{"items":[
			{"id":"l1","email":"Ana@Acme.io","first_name":"Ana","lt_interest_status":2,"email_reply_count":3,
			 "timestamp_last_reply":"2026-03-01T10:00:00Z","payload":{"title":"CTO"}},
			{"id":"l2","email":"bo@acme.io","lt_interest_status":"-1"},
			{"id":"l3","email":"cy@acme.io","website":"acme.io"}
		]}`))
	})

	leads, err := c.ListLeads(context.Background(), target, 100, 200)
	require.NoError(t, err)
	require.Len(t, leads, 3)

	assert.Equal(t, "l1", leads[0].ProviderLeadID)
	assert.Equal(t, reconcile.InterestMeetingBooked, leads[0].Interest)
	assert.Equal(t, 3, leads[0].ReplyCount)
	require.NotNil(t, leads[0].RespondedAt)
	assert.Equal(t, map[string]any{"instantly": map[string]any{"title": "CTO"}}, leads[0].Metadata)

	assert.Equal(t, reconcile.InterestNotInterested, leads[1].Interest)
	assert.Equal(t, reconcile.InterestUnknown, leads[2].Interest)
	assert.Equal(t, "acme.io", leads[2].CompanyDomain)
}

func TestListPositiveLeadsPagesUntilShortPage(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body listLeadsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls++

		count := provider.PositivePageSize
		if body.Skip > 0 {
			count = 3
		}
		items := make([]map[string]any, 0, count)
		for i := 0; i < count; i++ {
			item := map[string]any{"id": fmt.Sprintf("l-%d-%d", body.Skip, i), "email": fmt.Sprintf("p%d-%d@x.io", body.Skip, i)}
			if i == 0 {
				item["lt_interest_status"] = 1
			}
			items = append(items, item)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})

	leads, err := c.ListPositiveLeads(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, leads, 2)
}

func TestLastReplyAt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, listEmailsPath, r.URL.Path)
		assert.Equal(t, "ana@acme.io", r.URL.Query().Get("lead"))
		assert.Equal(t, "received", r.URL.Query().Get("email_type"))
		_, _ = w.Write([]byte(`{"items":[{"id":"e1","timestamp_email":"2026-02-02T08:30:00Z"}]}`))
	})

	ts, err := c.LastReplyAt(context.Background(), target, reconcile.ProviderLead{Email: " Ana@Acme.io"})
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, "2026-02-02T08:30:00Z", ts.Format("2006-01-02T15:04:05Z07:00"))
}

func TestListLeadsWrapsTransientErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.ListLeads(context.Background(), target, 100, 0)
	assert.ErrorIs(t, err, httpclient.ErrTransient)
}
