package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateClientRequest contains data for creating a client.
type CreateClientRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// CreateCampaignRequest links a provider campaign to a client.
type CreateCampaignRequest struct {
	ClientID           uuid.UUID `json:"clientId" validate:"required"`
	Name               string    `json:"name" validate:"required,min=1,max=200"`
	Provider           string    `json:"provider" validate:"required,provider"`
	ProviderCampaignID string    `json:"providerCampaignId" validate:"required,min=1,max=200"`
	APIKey             *string   `json:"apiKey,omitempty" validate:"omitempty,min=8,max=500"`
}

// SetAPIKeyRequest replaces a campaign's provider key. A nil key clears it.
type SetAPIKeyRequest struct {
	APIKey *string `json:"apiKey" validate:"omitempty,min=8,max=500"`
}

// ClientResponse represents a client in API responses.
type ClientResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	CampaignCount int       `json:"campaignCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ClientListResponse wraps a list of clients.
type ClientListResponse struct {
	Items []ClientResponse `json:"items"`
	Total int              `json:"total"`
}

// CampaignResponse represents a campaign in API responses. The API key is
// never returned, only whether one is set.
type CampaignResponse struct {
	ID                 uuid.UUID `json:"id"`
	ClientID           uuid.UUID `json:"clientId"`
	ClientName         string    `json:"clientName"`
	Name               string    `json:"name"`
	Provider           string    `json:"provider"`
	ProviderCampaignID string    `json:"providerCampaignId"`
	HasAPIKey          bool      `json:"hasApiKey"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// CampaignListResponse wraps a list of campaigns.
type CampaignListResponse struct {
	Items []CampaignResponse `json:"items"`
	Total int                `json:"total"`
}

// DeleteCampaignResponse reports how many leads were kept as history.
type DeleteCampaignResponse struct {
	ID           uuid.UUID `json:"id"`
	LeadsKept    int64     `json:"leadsKept"`
	Denormalized bool      `json:"denormalized"`
}
