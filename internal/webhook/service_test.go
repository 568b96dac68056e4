package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLeads struct {
	mu    sync.Mutex
	leads map[string]reconcile.Lead
	err   error
}

func newMemLeads() *memLeads {
	return &memLeads{leads: make(map[string]reconcile.Lead)}
}

func (m *memLeads) FindByProviderID(context.Context, uuid.UUID, string) (*reconcile.Lead, error) {
	return nil, nil
}

func (m *memLeads) FindByEmail(_ context.Context, campaignID uuid.UUID, email string) (*reconcile.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[campaignID.String()+"/"+reconcile.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

func (m *memLeads) Upsert(_ context.Context, u leadsrepo.Upsert) (leadsrepo.UpsertResult, error) {
	if m.err != nil {
		return leadsrepo.UpsertResult{Err: m.err}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := u.CampaignID.String() + "/" + reconcile.NormalizeEmail(u.Payload.Email)
	existing, ok := m.leads[key]
	var base *reconcile.Lead
	if ok {
		base = &existing
	}
	next := u.Payload.Apply(base)
	next.CampaignID = u.CampaignID
	if !ok {
		next.ID = uuid.New()
	}
	m.leads[key] = next
	return leadsrepo.UpsertResult{ID: next.ID, Inserted: !ok}, nil
}

func (m *memLeads) get(campaignID uuid.UUID, email string) reconcile.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leads[campaignID.String()+"/"+email]
}

type memCampaigns struct {
	campaigns []campaignsrepo.Campaign
	clients   map[uuid.UUID]campaignsrepo.Client
}

func (m *memCampaigns) FindByProviderCampaign(_ context.Context, p reconcile.Provider, id string) (*campaignsrepo.Campaign, error) {
	for _, c := range m.campaigns {
		if c.Provider == p && c.ProviderCampaignID == id {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCampaigns) GetClient(_ context.Context, id uuid.UUID) (campaignsrepo.Client, error) {
	cl, ok := m.clients[id]
	if !ok {
		return campaignsrepo.Client{}, apperr.NotFound("client not found")
	}
	return cl, nil
}

type memKeys struct {
	keys []APIKey
}

func (m *memKeys) Create(_ context.Context, clientID uuid.UUID, p reconcile.Provider, name, hash, prefix string) (APIKey, error) {
	key := APIKey{ID: uuid.New(), ClientID: clientID, Provider: p, Name: name, KeyHash: hash, KeyPrefix: prefix, IsActive: true, CreatedAt: time.Now()}
	m.keys = append(m.keys, key)
	return key, nil
}

func (m *memKeys) ListByClient(_ context.Context, clientID uuid.UUID) ([]APIKey, error) {
	var out []APIKey
	for _, k := range m.keys {
		if k.ClientID == clientID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memKeys) Revoke(_ context.Context, keyID, clientID uuid.UUID) error {
	for i, k := range m.keys {
		if k.ID == keyID && k.ClientID == clientID && k.IsActive {
			m.keys[i].IsActive = false
			return nil
		}
	}
	return ErrAPIKeyNotFound
}

func (m *memKeys) GetByHash(_ context.Context, hash string) (APIKey, error) {
	for _, k := range m.keys {
		if k.KeyHash == hash && k.IsActive {
			return k, nil
		}
	}
	return APIKey{}, ErrAPIKeyNotFound
}

type fixture struct {
	svc       *Service
	leads     *memLeads
	keys      *memKeys
	bus       *events.InMemoryBus
	metrics   *Metrics
	client    uuid.UUID
	campaign  campaignsrepo.Campaign
	positives chan uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.New("test")
	clientID := uuid.New()
	campaign := campaignsrepo.Campaign{
		ID: uuid.New(), ClientID: clientID, ClientName: "Acme", Name: "Spring outreach",
		Provider: reconcile.ProviderInstantly, ProviderCampaignID: "camp-1",
	}
	smartlead := campaignsrepo.Campaign{
		ID: uuid.New(), ClientID: clientID, ClientName: "Acme", Name: "Smartlead outreach",
		Provider: reconcile.ProviderSmartlead, ProviderCampaignID: "4242",
	}
	campaigns := &memCampaigns{
		campaigns: []campaignsrepo.Campaign{campaign, smartlead},
		clients:   map[uuid.UUID]campaignsrepo.Client{clientID: {ID: clientID, Name: "Acme"}},
	}

	bus := events.NewInMemoryBus(log)
	positives := make(chan uuid.UUID, 8)
	bus.Subscribe(events.LeadPositiveReplyDetected{}.EventName(), events.HandlerFunc(func(_ context.Context, evt events.Event) error {
		if e, ok := evt.(events.LeadPositiveReplyDetected); ok && e.Source == events.SourceWebhook {
			positives <- e.LeadID
		}
		return nil
	}))

	leads := newMemLeads()
	keys := &memKeys{}
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewService(campaigns, leads, keys, bus, metrics, log)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, leads: leads, keys: keys, bus: bus, metrics: metrics, client: clientID, campaign: campaign, positives: positives}
}

func (f *fixture) process(t *testing.T, evtType string) Result {
	t.Helper()
	res, err := f.svc.ProcessEvent(context.Background(), f.client, reconcile.ProviderInstantly, InstantlyPayload{
		EventType: evtType, CampaignID: "camp-1", LeadEmail: "Ana@Example.com",
	}.Event())
	require.NoError(t, err)
	return res
}

func TestWebhookCreatesLeadOnFirstEvent(t *testing.T) {
	f := newFixture(t)

	res := f.process(t, reconcile.EventEmailOpened)
	assert.False(t, res.Ignored)
	assert.True(t, res.Created)
	assert.Equal(t, string(reconcile.StatusOpened), res.Status)

	lead := f.leads.get(f.campaign.ID, "ana@example.com")
	assert.Equal(t, "Ana@Example.com", lead.Email)
	assert.Equal(t, 1, lead.OpenCount)
	assert.Equal(t, "Spring outreach", lead.CampaignName)
	assert.Equal(t, f.client, lead.ClientID)
}

func TestWebhookLateOpenKeepsWon(t *testing.T) {
	f := newFixture(t)
	f.process(t, reconcile.EventClosed)

	res := f.process(t, reconcile.EventEmailOpened)
	assert.False(t, res.Created)
	assert.Equal(t, string(reconcile.StatusWon), res.Status)
	assert.Equal(t, reconcile.StatusWon, f.leads.get(f.campaign.ID, "ana@example.com").Status)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.process(t, reconcile.EventReplyReceived)
	first := f.leads.get(f.campaign.ID, "ana@example.com")

	f.process(t, reconcile.EventReplyReceived)
	second := f.leads.get(f.campaign.ID, "ana@example.com")

	assert.Equal(t, first.ReplyCount, second.ReplyCount)
	assert.True(t, second.HasReplied)
	require.NotNil(t, second.RespondedAt)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), *second.RespondedAt)
}

func TestWebhookMeetingBookedIsPositive(t *testing.T) {
	f := newFixture(t)

	res := f.process(t, reconcile.EventMeetingBooked)
	assert.Equal(t, string(reconcile.StatusBooked), res.Status)
	assert.True(t, f.leads.get(f.campaign.ID, "ana@example.com").IsPositiveReply)

	f.bus.Wait()
	assert.Len(t, f.positives, 1)
}

func TestWebhookIgnoresUnknownEventsAndCampaigns(t *testing.T) {
	f := newFixture(t)

	res := f.process(t, "campaign_completed")
	assert.True(t, res.Ignored)
	assert.Equal(t, reasonUnknownEvent, res.Reason)

	res, err := f.svc.ProcessEvent(context.Background(), f.client, reconcile.ProviderInstantly, Event{Type: reconcile.EventEmailOpened, ProviderCampaignID: "nope", Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, reasonUnknownCampaign, res.Reason)

	res, err = f.svc.ProcessEvent(context.Background(), uuid.New(), reconcile.ProviderInstantly, Event{Type: reconcile.EventEmailOpened, ProviderCampaignID: "camp-1", Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, reasonUnknownCampaign, res.Reason, "another client's campaign must look unknown")

	res, err = f.svc.ProcessEvent(context.Background(), f.client, reconcile.ProviderInstantly, Event{Type: reconcile.EventEmailOpened, ProviderCampaignID: "camp-1"})
	require.NoError(t, err)
	assert.Equal(t, reasonMissingEmail, res.Reason)

	assert.Empty(t, f.leads.leads)
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("instantly", outcomeIgnored)))
}

func TestWebhookStoreFailureIsAnError(t *testing.T) {
	f := newFixture(t)
	f.leads.err = errors.New("db down")

	_, err := f.svc.ProcessEvent(context.Background(), f.client, reconcile.ProviderInstantly, Event{Type: reconcile.EventEmailOpened, ProviderCampaignID: "camp-1", Email: "a@b.co"})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("instantly", outcomeFailed)))
}

func TestKeyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateKey(ctx, f.client, CreateAPIKeyRequest{Name: "Instantly prod", Provider: "instantly"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Key, created.KeyPrefix))
	assert.Equal(t, HashKey(created.Key), f.keys.keys[0].KeyHash)

	listed, err := f.svc.ListKeys(ctx, f.client)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	require.NoError(t, f.svc.RevokeKey(ctx, f.client, created.ID))
	assert.True(t, apperr.Is(f.svc.RevokeKey(ctx, f.client, created.ID), apperr.KindNotFound))

	_, err = f.svc.CreateKey(ctx, uuid.New(), CreateAPIKeyRequest{Name: "x", Provider: "instantly"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestWebhookRoutesRequireMatchingKey(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateKey(context.Background(), f.client, CreateAPIKeyRequest{Name: "prod", Provider: "instantly"})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	h := NewHandler(f.svc, provider.MustLoadInterestMap(), validator.New())
	r := gin.New()
	r.POST("/webhook/instantly", APIKeyAuthMiddleware(f.keys, reconcile.ProviderInstantly), h.HandleInstantly)
	r.POST("/webhook/smartlead", APIKeyAuthMiddleware(f.keys, reconcile.ProviderSmartlead), h.HandleSmartlead)

	post := func(path, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(APIKeyHeader, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	body := `{"event_type":"email_opened","campaign_id":"camp-1","lead_email":"ana@example.com"}`
	assert.Equal(t, http.StatusUnauthorized, post("/webhook/instantly", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, post("/webhook/instantly", "brk_wrong", body).Code)
	assert.Equal(t, http.StatusForbidden, post("/webhook/smartlead", created.Key, `{"event_type":"EMAIL_OPEN","campaign_id":4242}`).Code)

	w := post("/webhook/instantly", created.Key, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)

	w = post("/webhook/instantly", created.Key, `{"event_type":"lead_no_show","campaign_id":"camp-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored":true`)
}
