package leadsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

// memStore is an in-memory LeadStore whose upsert follows the same merge
// rules as the SQL statement.
type memStore struct {
	mu          sync.Mutex
	leads       map[uuid.UUID]*reconcile.Lead
	writes      int
	batches     int
	failEmails  map[string]error
	markErr     error
	missing     []leadsrepo.BackfillCandidate
	respondedAt map[uuid.UUID]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		leads:       make(map[uuid.UUID]*reconcile.Lead),
		failEmails:  make(map[string]error),
		respondedAt: make(map[uuid.UUID]time.Time),
	}
}

func (s *memStore) seed(lead reconcile.Lead) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = reconcile.StatusContacted
	}
	s.leads[lead.ID] = &lead
	return lead.ID
}

func (s *memStore) get(id uuid.UUID) reconcile.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.leads[id]
}

func (s *memStore) byEmail(campaignID uuid.UUID, email string) *reconcile.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findEmail(campaignID, email)
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leads)
}

func (s *memStore) findEmail(campaignID uuid.UUID, email string) *reconcile.Lead {
	email = reconcile.NormalizeEmail(email)
	for _, l := range s.leads {
		if l.CampaignID == campaignID && reconcile.NormalizeEmail(l.Email) == email {
			cp := *l
			return &cp
		}
	}
	return nil
}

func (s *memStore) FindByProviderID(_ context.Context, campaignID uuid.UUID, providerLeadID string) (*reconcile.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.CampaignID == campaignID && l.ProviderLeadID != nil && *l.ProviderLeadID == providerLeadID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindByEmail(_ context.Context, campaignID uuid.UUID, email string) (*reconcile.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findEmail(campaignID, email), nil
}

func (s *memStore) LoadIdentities(_ context.Context, campaignID uuid.UUID, ids, emails []string) ([]reconcile.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wantID := make(map[string]bool, len(ids))
	for _, id := range ids {
		wantID[id] = true
	}
	wantEmail := make(map[string]bool, len(emails))
	for _, e := range emails {
		wantEmail[e] = true
	}

	out := make([]reconcile.Lead, 0)
	for _, l := range s.leads {
		if l.CampaignID != campaignID {
			continue
		}
		idMatch := l.ProviderLeadID != nil && wantID[*l.ProviderLeadID]
		if idMatch || wantEmail[reconcile.NormalizeEmail(l.Email)] {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memStore) UpsertBatch(_ context.Context, items []leadsrepo.Upsert) ([]leadsrepo.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++

	results := make([]leadsrepo.UpsertResult, len(items))
	for i, item := range items {
		email := reconcile.NormalizeEmail(item.Payload.Email)
		if err, ok := s.failEmails[email]; ok {
			results[i] = leadsrepo.UpsertResult{Err: err}
			continue
		}

		var existing *reconcile.Lead
		if item.LeadID != nil {
			stored, ok := s.leads[*item.LeadID]
			if !ok || stored.CampaignID != item.CampaignID {
				results[i] = leadsrepo.UpsertResult{Err: leadsrepo.ErrNotFound}
				continue
			}
			existing = stored
		} else {
			existing = s.findEmail(item.CampaignID, email)
		}

		next := item.Payload.Apply(existing)
		next.CampaignID = item.CampaignID
		inserted := existing == nil
		if inserted {
			next.ID = uuid.New()
			next.Email = email
		}
		s.leads[next.ID] = &next
		s.writes++
		results[i] = leadsrepo.UpsertResult{ID: next.ID, Inserted: inserted}
	}
	return results, nil
}

func inScope(l *reconcile.Lead, scope leadsrepo.Scope) bool {
	if scope.CampaignID != nil && l.CampaignID != *scope.CampaignID {
		return false
	}
	if scope.ClientID != nil && l.ClientID != *scope.ClientID {
		return false
	}
	return true
}

func (s *memStore) CountAggregates(_ context.Context, scope leadsrepo.Scope) (leadsrepo.Aggregates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var agg leadsrepo.Aggregates
	for _, l := range s.leads {
		if !inScope(l, scope) {
			continue
		}
		agg.Total++
		if l.HasReplied {
			agg.Replied++
		}
		if l.IsPositiveReply {
			agg.Positive++
		}
	}
	return agg, nil
}

func (s *memStore) ListPositiveIDs(_ context.Context, scope leadsrepo.Scope) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for _, l := range s.leads {
		if l.IsPositiveReply && inScope(l, scope) {
			ids = append(ids, l.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (s *memStore) ListMissingRespondedAt(_ context.Context, _ uuid.UUID) ([]leadsrepo.BackfillCandidate, error) {
	return s.missing, nil
}

func (s *memStore) SetRespondedAt(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.respondedAt[id]; done {
		return false, nil
	}
	s.respondedAt[id] = at
	return true, nil
}

func (s *memStore) WithinTx(_ context.Context, fn func(w PositiveWriter) error) error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]reconcile.Lead, len(s.leads))
	for id, l := range s.leads {
		snapshot[id] = *l
	}
	s.mu.Unlock()

	if err := fn(memTx{s}); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, l := range snapshot {
			restored := l
			s.leads[id] = &restored
		}
		return err
	}
	return nil
}

type memTx struct{ s *memStore }

func (t memTx) ResetPositive(_ context.Context, scope leadsrepo.Scope) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var n int64
	for _, l := range t.s.leads {
		if l.IsPositiveReply && inScope(l, scope) {
			l.IsPositiveReply = false
			n++
		}
	}
	return n, nil
}

func (t memTx) MarkPositive(_ context.Context, ids []uuid.UUID) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.markErr != nil {
		return 0, t.s.markErr
	}
	var n int64
	for _, id := range ids {
		if l, ok := t.s.leads[id]; ok {
			l.IsPositiveReply = true
			l.HasReplied = true
			n++
		}
	}
	return n, nil
}

// scriptedSource serves a fixed lead list. failures are consumed one per
// ListLeads call; a nil entry lets that call succeed.
type scriptedSource struct {
	mu          sync.Mutex
	leads       []reconcile.ProviderLead
	positive    []reconcile.ProviderLead
	positiveErr error
	failures    []error
	calls       int
	replies     map[string]time.Time
	replyErrs   map[string]error
	onReply     func()
}

func (s *scriptedSource) ListLeads(_ context.Context, _ provider.Target, limit, skip int) ([]reconcile.ProviderLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	if skip >= len(s.leads) {
		return []reconcile.ProviderLead{}, nil
	}
	end := min(skip+limit, len(s.leads))
	return append([]reconcile.ProviderLead(nil), s.leads[skip:end]...), nil
}

func (s *scriptedSource) ListPositiveLeads(_ context.Context, _ provider.Target) ([]reconcile.ProviderLead, error) {
	if s.positiveErr != nil {
		return nil, s.positiveErr
	}
	return s.positive, nil
}

func (s *scriptedSource) LastReplyAt(_ context.Context, _ provider.Target, lead reconcile.ProviderLead) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onReply != nil {
		s.onReply()
	}
	if err, ok := s.replyErrs[lead.Email]; ok {
		return nil, err
	}
	if at, ok := s.replies[lead.Email]; ok {
		return &at, nil
	}
	return nil, nil
}

type staticResolver struct{ source provider.Source }

func (r staticResolver) For(t provider.Target) (provider.Source, error) {
	if t.APIKey == "" {
		return nil, provider.ErrNotConfigured
	}
	return r.source, nil
}

type memCampaigns struct {
	clients   map[uuid.UUID]campaignsrepo.Client
	campaigns []campaignsrepo.Campaign
}

func (m *memCampaigns) GetCampaign(_ context.Context, id uuid.UUID) (campaignsrepo.Campaign, error) {
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, nil
		}
	}
	return campaignsrepo.Campaign{}, apperr.NotFound("campaign not found")
}

func (m *memCampaigns) ListByClient(_ context.Context, clientID uuid.UUID) ([]campaignsrepo.Campaign, error) {
	out := make([]campaignsrepo.Campaign, 0)
	for _, c := range m.campaigns {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCampaigns) GetClient(_ context.Context, id uuid.UUID) (campaignsrepo.Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return campaignsrepo.Client{}, apperr.NotFound("client not found")
	}
	return c, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) positives() []events.LeadPositiveReplyDetected {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.LeadPositiveReplyDetected, 0)
	for _, e := range b.events {
		if p, ok := e.(events.LeadPositiveReplyDetected); ok {
			out = append(out, p)
		}
	}
	return out
}

func (b *recordingBus) completed() []events.SyncCompleted {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.SyncCompleted, 0)
	for _, e := range b.events {
		if c, ok := e.(events.SyncCompleted); ok {
			out = append(out, c)
		}
	}
	return out
}

type harness struct {
	orch      *Orchestrator
	store     *memStore
	source    *scriptedSource
	campaigns *memCampaigns
	bus       *recordingBus
	locker    *LocalLocker
	client    campaignsrepo.Client
	campaign  campaignsrepo.Campaign
	sleeps    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	key := "key-123"
	client := campaignsrepo.Client{ID: uuid.New(), Name: "Acme"}
	campaign := campaignsrepo.Campaign{
		ID:                 uuid.New(),
		ClientID:           client.ID,
		ClientName:         client.Name,
		Name:               "Spring outreach",
		Provider:           reconcile.ProviderInstantly,
		ProviderCampaignID: "camp-1",
		APIKey:             &key,
	}

	h := &harness{
		store:  newMemStore(),
		source: &scriptedSource{},
		campaigns: &memCampaigns{
			clients:   map[uuid.UUID]campaignsrepo.Client{client.ID: client},
			campaigns: []campaignsrepo.Campaign{campaign},
		},
		bus:      &recordingBus{},
		locker:   NewLocalLocker(),
		client:   client,
		campaign: campaign,
	}

	settings := DefaultSettings()
	h.orch = NewOrchestrator(h.store, h.campaigns, staticResolver{h.source}, h.locker, h.bus, nil, settings, logger.New("test"))
	h.orch.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

func (h *harness) addCampaign(name string, withKey bool) campaignsrepo.Campaign {
	c := campaignsrepo.Campaign{
		ID:                 uuid.New(),
		ClientID:           h.client.ID,
		ClientName:         h.client.Name,
		Name:               name,
		Provider:           reconcile.ProviderInstantly,
		ProviderCampaignID: "camp-" + name,
	}
	if withKey {
		key := "key-" + name
		c.APIKey = &key
	}
	h.campaigns.campaigns = append(h.campaigns.campaigns, c)
	return c
}

func providerLeads(n int) []reconcile.ProviderLead {
	out := make([]reconcile.ProviderLead, n)
	for i := range out {
		out[i] = reconcile.ProviderLead{
			ProviderLeadID: fmt.Sprintf("pl-%03d", i),
			Email:          fmt.Sprintf("lead%03d@example.com", i),
			FirstName:      "Lead",
			OpenCount:      i % 3,
		}
	}
	return out
}

func transientErr() error {
	return &httpclient.StatusError{Provider: "instantly", StatusCode: 503}
}

func unauthorizedErr() error {
	return &httpclient.StatusError{Provider: "instantly", StatusCode: 401}
}

var errWrite = errors.New("write failed")
