package service

import (
	"context"
	"strings"

	"bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/campaigns/transport"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

// Service provides business logic for clients and campaigns.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new campaigns service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetCampaign retrieves a campaign by ID.
func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (transport.CampaignResponse, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return transport.CampaignResponse{}, err
	}
	return toCampaignResponse(c), nil
}

// ListByClient lists the campaigns of a client.
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) (transport.CampaignListResponse, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return transport.CampaignListResponse{}, err
	}
	items, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return transport.CampaignListResponse{}, err
	}
	resp := transport.CampaignListResponse{Items: make([]transport.CampaignResponse, 0, len(items)), Total: len(items)}
	for _, c := range items {
		resp.Items = append(resp.Items, toCampaignResponse(c))
	}
	return resp, nil
}

// ListClients lists every client.
func (s *Service) ListClients(ctx context.Context) (transport.ClientListResponse, error) {
	items, err := s.repo.ListClients(ctx)
	if err != nil {
		return transport.ClientListResponse{}, err
	}
	resp := transport.ClientListResponse{Items: make([]transport.ClientResponse, 0, len(items)), Total: len(items)}
	for _, cl := range items {
		resp.Items = append(resp.Items, toClientResponse(cl))
	}
	return resp, nil
}

// CreateClient creates a client.
func (s *Service) CreateClient(ctx context.Context, req transport.CreateClientRequest) (transport.ClientResponse, error) {
	cl, err := s.repo.CreateClient(ctx, strings.TrimSpace(req.Name))
	if err != nil {
		return transport.ClientResponse{}, err
	}
	s.log.Info("client created", "clientId", cl.ID, "name", cl.Name)
	return toClientResponse(cl), nil
}

// CreateCampaign links a provider campaign to a client.
func (s *Service) CreateCampaign(ctx context.Context, req transport.CreateCampaignRequest) (transport.CampaignResponse, error) {
	provider := reconcile.Provider(strings.ToLower(req.Provider))
	if !provider.Valid() {
		return transport.CampaignResponse{}, apperr.Validation("unsupported provider")
	}

	c, err := s.repo.CreateCampaign(ctx, repository.CreateCampaignParams{
		ClientID:           req.ClientID,
		Name:               strings.TrimSpace(req.Name),
		Provider:           provider,
		ProviderCampaignID: strings.TrimSpace(req.ProviderCampaignID),
		APIKey:             trimKey(req.APIKey),
	})
	if err != nil {
		return transport.CampaignResponse{}, err
	}

	s.log.Info("campaign linked", "campaignId", c.ID, "clientId", c.ClientID, "provider", c.Provider, "hasApiKey", c.HasAPIKey())
	return toCampaignResponse(c), nil
}

// SetAPIKey replaces or clears a campaign's provider key.
func (s *Service) SetAPIKey(ctx context.Context, id uuid.UUID, req transport.SetAPIKeyRequest) (transport.CampaignResponse, error) {
	if err := s.repo.SetAPIKey(ctx, id, trimKey(req.APIKey)); err != nil {
		return transport.CampaignResponse{}, err
	}
	return s.GetCampaign(ctx, id)
}

// DeleteCampaign removes a campaign and keeps its leads as history.
func (s *Service) DeleteCampaign(ctx context.Context, id uuid.UUID) (transport.DeleteCampaignResponse, error) {
	kept, err := s.repo.DeleteCampaign(ctx, id)
	if err != nil {
		return transport.DeleteCampaignResponse{}, err
	}
	s.log.Info("campaign deleted", "campaignId", id, "leadsKept", kept)
	return transport.DeleteCampaignResponse{ID: id, LeadsKept: kept, Denormalized: true}, nil
}

func trimKey(key *string) *string {
	if key == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*key)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toCampaignResponse(c repository.Campaign) transport.CampaignResponse {
	return transport.CampaignResponse{
		ID:                 c.ID,
		ClientID:           c.ClientID,
		ClientName:         c.ClientName,
		Name:               c.Name,
		Provider:           string(c.Provider),
		ProviderCampaignID: c.ProviderCampaignID,
		HasAPIKey:          c.HasAPIKey(),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func toClientResponse(cl repository.Client) transport.ClientResponse {
	return transport.ClientResponse{
		ID:            cl.ID,
		Name:          cl.Name,
		CampaignCount: cl.CampaignCount,
		CreatedAt:     cl.CreatedAt,
	}
}
