package smartlead

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var target = provider.Target{Provider: reconcile.ProviderSmartlead, ProviderCampaignID: "9001", APIKey: "sl-key"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport := httpclient.New(httpclient.Options{Name: "smartlead", BaseURL: srv.URL})
	return New(transport, provider.MustLoadInterestMap())
}

func TestListLeadsUsesOffsetQueryAndMapsCategory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns/9001/leads", r.URL.Path)
		assert.Equal(t, "sl-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"total_leads":"2","offset":100,"limit":100,"data":[
			{"campaign_lead_map_id":77,"lead_category":"Meeting Request","status":"INPROGRESS",
			 "last_reply_time":"2026-01-05T12:00:00Z",
			 "lead":{"id":501,"email":"Dee@Corp.com","first_name":"Dee","phone_number":"","website":"corp.com"}},
			{"lead_category":"Not Interested","reply_count":2,"lead":{"id":"502","email":"eve@corp.com"}}
		]}`))
	})

	leads, err := c.ListLeads(context.Background(), target, 100, 100)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "501", leads[0].ProviderLeadID)
	assert.Equal(t, reconcile.InterestMeetingBooked, leads[0].Interest)
	assert.Equal(t, 1, leads[0].ReplyCount, "a reply timestamp implies at least one reply")
	assert.Equal(t, "corp.com", leads[0].CompanyDomain)

	assert.Equal(t, "502", leads[1].ProviderLeadID)
	assert.Equal(t, reconcile.InterestNotInterested, leads[1].Interest)
	assert.False(t, provider.IsPositiveRecord(leads[1]))
}

func TestLastReplyAtPicksNewestReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/campaigns/9001/leads/501/message-history", r.URL.Path)
		_, _ = w.Write([]byte(`{"history":[
			{"type":"SENT","time":"2026-01-01T09:00:00Z"},
			{"type":"REPLY","time":"2026-01-02T09:00:00Z"},
			{"type":"REPLY","time":"2026-01-04T09:00:00Z"}
		]}`))
	})

	ts, err := c.LastReplyAt(context.Background(), target, reconcile.ProviderLead{ProviderLeadID: "501"})
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, 4, ts.Day())
}

func TestLastReplyAtWithoutProviderIDIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("unexpected request")
	})
	ts, err := c.LastReplyAt(context.Background(), target, reconcile.ProviderLead{Email: "a@b.c"})
	require.NoError(t, err)
	assert.Nil(t, ts)
}
