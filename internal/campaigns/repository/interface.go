package repository

import (
	"context"
	"time"

	"bluereach_backend/internal/reconcile"

	"github.com/google/uuid"
)

// Client is an agency customer owning campaigns.
type Client struct {
	ID            uuid.UUID
	Name          string
	CampaignCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Campaign is a provider-side campaign linked to a client.
type Campaign struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	ClientName         string
	Name               string
	Provider           reconcile.Provider
	ProviderCampaignID string
	APIKey             *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasAPIKey reports whether the campaign can be read from its provider.
func (c Campaign) HasAPIKey() bool {
	return c.APIKey != nil && *c.APIKey != ""
}

// CreateCampaignParams contains parameters for linking a campaign.
type CreateCampaignParams struct {
	ClientID           uuid.UUID
	Name               string
	Provider           reconcile.Provider
	ProviderCampaignID string
	APIKey             *string
}

// CampaignReader provides read operations for campaigns and clients.
type CampaignReader interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error)
	FindByProviderCampaign(ctx context.Context, provider reconcile.Provider, providerCampaignID string) (*Campaign, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]Campaign, error)
	ListAll(ctx context.Context) ([]Campaign, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
}

// CampaignWriter provides write operations for campaigns and clients.
type CampaignWriter interface {
	CreateClient(ctx context.Context, name string) (Client, error)
	CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error)
	SetAPIKey(ctx context.Context, id uuid.UUID, apiKey *string) error
	DeleteCampaign(ctx context.Context, id uuid.UUID) (int64, error)
}

// Repository combines all campaign storage operations.
type Repository interface {
	CampaignReader
	CampaignWriter
}
