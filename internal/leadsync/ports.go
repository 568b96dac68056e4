package leadsync

import (
	"context"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
)

// PositiveWriter is the transaction-bound half of the resync.
type PositiveWriter interface {
	ResetPositive(ctx context.Context, scope leadsrepo.Scope) (int64, error)
	MarkPositive(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// LeadStore is the canonical store as seen by the orchestrator.
type LeadStore interface {
	reconcile.Finder
	LoadIdentities(ctx context.Context, campaignID uuid.UUID, providerLeadIDs, emails []string) ([]reconcile.Lead, error)
	UpsertBatch(ctx context.Context, items []leadsrepo.Upsert) ([]leadsrepo.UpsertResult, error)
	CountAggregates(ctx context.Context, scope leadsrepo.Scope) (leadsrepo.Aggregates, error)
	ListPositiveIDs(ctx context.Context, scope leadsrepo.Scope) ([]uuid.UUID, error)
	ListMissingRespondedAt(ctx context.Context, campaignID uuid.UUID) ([]leadsrepo.BackfillCandidate, error)
	SetRespondedAt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// WithinTx runs fn against a writer bound to one transaction.
	WithinTx(ctx context.Context, fn func(w PositiveWriter) error) error
}

// SourceResolver picks the provider client for a campaign.
type SourceResolver interface {
	For(t provider.Target) (provider.Source, error)
}

// CampaignReader is the campaign lookup used by the orchestrator.
type CampaignReader interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (campaignsrepo.Campaign, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]campaignsrepo.Campaign, error)
	GetClient(ctx context.Context, id uuid.UUID) (campaignsrepo.Client, error)
}

// Enqueuer hands runs to the background worker.
type Enqueuer interface {
	EnqueueCampaignSync(ctx context.Context, campaignID uuid.UUID, opts Options) (string, error)
	EnqueueClientSync(ctx context.Context, clientID uuid.UUID, opts Options) (string, error)
	EnqueuePositiveResync(ctx context.Context, scope ResyncScope, opts Options) (string, error)
}

type pgStore struct {
	*leadsrepo.Repository
}

// NewStore adapts the leads repository to LeadStore.
func NewStore(repo *leadsrepo.Repository) LeadStore {
	return pgStore{Repository: repo}
}

func (s pgStore) WithinTx(ctx context.Context, fn func(w PositiveWriter) error) error {
	return s.InTx(ctx, func(tx *leadsrepo.Repository) error {
		return fn(tx)
	})
}

func targetFor(c campaignsrepo.Campaign) provider.Target {
	t := provider.Target{Provider: c.Provider, ProviderCampaignID: c.ProviderCampaignID}
	if c.APIKey != nil {
		t.APIKey = *c.APIKey
	}
	return t
}

func namesFor(c campaignsrepo.Campaign) reconcile.Denormalized {
	return reconcile.Denormalized{ClientID: c.ClientID, CampaignName: c.Name, ClientName: c.ClientName}
}

func campaignScope(id uuid.UUID) leadsrepo.Scope {
	return leadsrepo.Scope{CampaignID: &id}
}
