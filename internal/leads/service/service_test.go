package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/leads/transport"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads      map[uuid.UUID]reconcile.Lead
	lastList   repository.ListParams
	lastFields repository.OperatorFields
	agg        repository.Aggregates
	byStatus   map[string]int
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (reconcile.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return reconcile.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) ListByCampaign(_ context.Context, params repository.ListParams) ([]reconcile.Lead, int, error) {
	f.lastList = params
	var out []reconcile.Lead
	for _, lead := range f.leads {
		if lead.CampaignID == params.CampaignID {
			out = append(out, lead)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) UpdateOperatorFields(_ context.Context, id uuid.UUID, fields repository.OperatorFields) (reconcile.Lead, error) {
	f.lastFields = fields
	lead := f.leads[id]
	if fields.Notes != nil {
		lead.Notes = *fields.Notes
	}
	if fields.ClearDealValue {
		lead.DealValue = nil
	} else if fields.DealValue != nil {
		lead.DealValue = fields.DealValue
	}
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) SetStatusManual(_ context.Context, id uuid.UUID, status reconcile.Status) (reconcile.Lead, error) {
	lead := f.leads[id]
	lead.Status = status
	f.leads[id] = lead
	return lead, nil
}

func (f *fakeStore) CountAggregates(context.Context, repository.Scope) (repository.Aggregates, error) {
	return f.agg, nil
}

func (f *fakeStore) StatusCounts(context.Context, repository.Scope) (map[string]int, error) {
	return f.byStatus, nil
}

type fakeCampaigns map[uuid.UUID]campaignsrepo.Campaign

func (f fakeCampaigns) GetCampaign(_ context.Context, id uuid.UUID) (campaignsrepo.Campaign, error) {
	c, ok := f[id]
	if !ok {
		return campaignsrepo.Campaign{}, apperr.NotFound("campaign not found")
	}
	return c, nil
}

type onlyClient uuid.UUID

func (o onlyClient) CanAccessClient(id uuid.UUID) bool { return uuid.UUID(o) == id }

type fixture struct {
	svc      *Service
	store    *fakeStore
	client   uuid.UUID
	campaign uuid.UUID
	lead     uuid.UUID
}

func newFixture() fixture {
	client, campaign, lead := uuid.New(), uuid.New(), uuid.New()
	deal := 1200.0
	store := &fakeStore{leads: map[uuid.UUID]reconcile.Lead{
		lead: {ID: lead, CampaignID: campaign, ClientID: client, Email: "ana@example.com", Status: reconcile.StatusWon, DealValue: &deal},
	}}
	campaigns := fakeCampaigns{campaign: {ID: campaign, ClientID: client}}
	return fixture{
		svc:      New(store, campaigns, logger.New("test")),
		store:    store,
		client:   client,
		campaign: campaign,
		lead:     lead,
	}
}

func TestListByCampaignPaginates(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.ListByCampaign(context.Background(), onlyClient(f.client), f.campaign, transport.ListLeadsRequest{
		Status: "won", Page: 3, PageSize: 20, Positive: true,
	})
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	if f.store.lastList.Offset != 40 || f.store.lastList.Limit != 20 {
		t.Fatalf("expected offset 40 limit 20, got %d %d", f.store.lastList.Offset, f.store.lastList.Limit)
	}
	if f.store.lastList.Status == nil || *f.store.lastList.Status != reconcile.StatusWon || !f.store.lastList.PositiveOnly {
		t.Fatalf("filters not forwarded: %+v", f.store.lastList)
	}
	if resp.Total != 1 || resp.TotalPages != 1 || resp.Page != 3 {
		t.Fatalf("unexpected page meta: %+v", resp)
	}
}

func TestListByCampaignRejectsOtherClients(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListByCampaign(context.Background(), onlyClient(uuid.New()), f.campaign, transport.ListLeadsRequest{})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdateOperatorFieldsSanitizesAndClears(t *testing.T) {
	f := newFixture()

	var req transport.UpdateLeadRequest
	if err := json.Unmarshal([]byte(`{"notes":"<b>call</b>   back\nmonday","dealValue":null}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, err := f.svc.UpdateOperatorFields(context.Background(), onlyClient(f.client), f.lead, req)
	if err != nil {
		t.Fatalf("UpdateOperatorFields: %v", err)
	}
	if resp.Notes != "call back\nmonday" {
		t.Fatalf("notes not sanitized: %q", resp.Notes)
	}
	if !f.store.lastFields.ClearDealValue || resp.DealValue != nil {
		t.Fatalf("expected deal value cleared, got %+v", f.store.lastFields)
	}
	if f.store.lastFields.NextAction != nil {
		t.Fatalf("absent nextAction must stay untouched")
	}
}

func TestUpdateOperatorFieldsRejectsNegativeDeal(t *testing.T) {
	f := newFixture()

	var req transport.UpdateLeadRequest
	if err := json.Unmarshal([]byte(`{"dealValue":-5}`), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err := f.svc.UpdateOperatorFields(context.Background(), onlyClient(f.client), f.lead, req)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetStatusLeavesTerminalOnlyByOverride(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.SetStatus(context.Background(), onlyClient(f.client), f.lead, transport.UpdateLeadStatusRequest{Status: "replied"})
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if resp.Status != string(reconcile.StatusReplied) {
		t.Fatalf("expected replied, got %s", resp.Status)
	}
}

func TestLeadOfOtherClientLooksMissing(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SetStatus(context.Background(), onlyClient(uuid.New()), f.lead, transport.UpdateLeadStatusRequest{Status: "won"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = f.svc.SetStatus(context.Background(), onlyClient(f.client), uuid.New(), transport.UpdateLeadStatusRequest{Status: "won"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for unknown lead, got %v", err)
	}
}

func TestCampaignStatsRates(t *testing.T) {
	f := newFixture()
	f.store.agg = repository.Aggregates{Total: 150, Replied: 12, Positive: 4}
	f.store.byStatus = map[string]int{"contacted": 100, "replied": 8, "booked": 4}

	stats, err := f.svc.CampaignStats(context.Background(), f.campaign)
	if err != nil {
		t.Fatalf("CampaignStats: %v", err)
	}
	if stats.ReplyRate != 0.08 || stats.PositiveRate != 0.0267 {
		t.Fatalf("unexpected rates: %v %v", stats.ReplyRate, stats.PositiveRate)
	}
	if stats.ByStatus["booked"] != 4 {
		t.Fatalf("status counts not forwarded: %+v", stats.ByStatus)
	}

	_, err = f.svc.CampaignStats(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMapStoreErrorWrapsUnexpected(t *testing.T) {
	err := mapStoreError(errors.New("conn reset"))
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal, got %v", err)
	}
}
