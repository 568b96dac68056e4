package service

import (
	"context"
	"testing"

	"bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/campaigns/transport"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	clients   map[uuid.UUID]repository.Client
	campaigns map[uuid.UUID]repository.Campaign
	created   []repository.CreateCampaignParams
	keys      map[uuid.UUID]*string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients:   map[uuid.UUID]repository.Client{},
		campaigns: map[uuid.UUID]repository.Campaign{},
		keys:      map[uuid.UUID]*string{},
	}
}

func (f *fakeRepo) GetCampaign(_ context.Context, id uuid.UUID) (repository.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	c.APIKey = f.keys[id]
	return c, nil
}

func (f *fakeRepo) FindByProviderCampaign(context.Context, reconcile.Provider, string) (*repository.Campaign, error) {
	return nil, nil
}

func (f *fakeRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]repository.Campaign, error) {
	out := []repository.Campaign{}
	for _, c := range f.campaigns {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListAll(context.Context) ([]repository.Campaign, error) { return nil, nil }

func (f *fakeRepo) GetClient(_ context.Context, id uuid.UUID) (repository.Client, error) {
	cl, ok := f.clients[id]
	if !ok {
		return repository.Client{}, apperr.NotFound("client not found")
	}
	return cl, nil
}

func (f *fakeRepo) ListClients(context.Context) ([]repository.Client, error) {
	out := []repository.Client{}
	for _, cl := range f.clients {
		out = append(out, cl)
	}
	return out, nil
}

func (f *fakeRepo) CreateClient(_ context.Context, name string) (repository.Client, error) {
	cl := repository.Client{ID: uuid.New(), Name: name}
	f.clients[cl.ID] = cl
	return cl, nil
}

func (f *fakeRepo) CreateCampaign(_ context.Context, params repository.CreateCampaignParams) (repository.Campaign, error) {
	f.created = append(f.created, params)
	c := repository.Campaign{
		ID:                 uuid.New(),
		ClientID:           params.ClientID,
		Name:               params.Name,
		Provider:           params.Provider,
		ProviderCampaignID: params.ProviderCampaignID,
		APIKey:             params.APIKey,
	}
	f.campaigns[c.ID] = c
	f.keys[c.ID] = params.APIKey
	return c, nil
}

func (f *fakeRepo) SetAPIKey(_ context.Context, id uuid.UUID, apiKey *string) error {
	if _, ok := f.campaigns[id]; !ok {
		return apperr.NotFound("campaign not found")
	}
	f.keys[id] = apiKey
	return nil
}

func (f *fakeRepo) DeleteCampaign(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := f.campaigns[id]; !ok {
		return 0, apperr.NotFound("campaign not found")
	}
	delete(f.campaigns, id)
	return 7, nil
}

func strPtr(s string) *string { return &s }

func TestCreateCampaignNormalizesInput(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, logger.New("test"))
	clientID := uuid.New()

	resp, err := svc.CreateCampaign(context.Background(), transport.CreateCampaignRequest{
		ClientID:           clientID,
		Name:               "  Q3 outbound ",
		Provider:           "Instantly",
		ProviderCampaignID: " c-1 ",
		APIKey:             strPtr("   "),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := repo.created[0]
	if got.Name != "Q3 outbound" || got.ProviderCampaignID != "c-1" || got.Provider != reconcile.ProviderInstantly {
		t.Fatalf("unexpected params: %+v", got)
	}
	if got.APIKey != nil || resp.HasAPIKey {
		t.Fatalf("expected blank key to be dropped")
	}
}

func TestCreateCampaignRejectsUnknownProvider(t *testing.T) {
	svc := New(newFakeRepo(), logger.New("test"))

	_, err := svc.CreateCampaign(context.Background(), transport.CreateCampaignRequest{ClientID: uuid.New(), Name: "x", Provider: "lemlist", ProviderCampaignID: "1"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetAPIKeyReportsKeyPresence(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, logger.New("test"))
	created, err := svc.CreateCampaign(context.Background(), transport.CreateCampaignRequest{ClientID: uuid.New(), Name: "x", Provider: "smartlead", ProviderCampaignID: "42"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.SetAPIKey(context.Background(), created.ID, transport.SetAPIKeyRequest{APIKey: strPtr(" sk_live ")})
	if err != nil {
		t.Fatalf("set key: %v", err)
	}
	if !resp.HasAPIKey || *repo.keys[created.ID] != "sk_live" {
		t.Fatalf("expected trimmed key to be stored")
	}
}

func TestListByClientUnknownClient(t *testing.T) {
	svc := New(newFakeRepo(), logger.New("test"))

	_, err := svc.ListByClient(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCampaignKeepsLeads(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, logger.New("test"))
	created, err := svc.CreateCampaign(context.Background(), transport.CreateCampaignRequest{ClientID: uuid.New(), Name: "x", Provider: "instantly", ProviderCampaignID: "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.DeleteCampaign(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.LeadsKept != 7 || !resp.Denormalized {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
