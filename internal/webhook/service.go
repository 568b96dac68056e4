package webhook

import (
	"context"
	"errors"
	"strings"
	"time"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	reasonUnknownEvent    = "unknown event"
	reasonUnknownCampaign = "unknown campaign"
	reasonMissingEmail    = "missing lead email"
)

// CampaignFinder resolves the campaign a delivery belongs to.
type CampaignFinder interface {
	FindByProviderCampaign(ctx context.Context, provider reconcile.Provider, providerCampaignID string) (*campaignsrepo.Campaign, error)
	GetClient(ctx context.Context, id uuid.UUID) (campaignsrepo.Client, error)
}

// LeadWriter is the lead store surface used for event writes.
type LeadWriter interface {
	reconcile.Finder
	Upsert(ctx context.Context, u leadsrepo.Upsert) (leadsrepo.UpsertResult, error)
}

// KeyRepository is the key management surface.
type KeyRepository interface {
	Create(ctx context.Context, clientID uuid.UUID, provider reconcile.Provider, name, keyHash, keyPrefix string) (APIKey, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]APIKey, error)
	Revoke(ctx context.Context, keyID uuid.UUID, clientID uuid.UUID) error
}

// Result is returned to the provider for every accepted delivery.
type Result struct {
	Ignored bool       `json:"ignored"`
	Reason  string     `json:"reason,omitempty"`
	Event   string     `json:"event,omitempty"`
	LeadID  *uuid.UUID `json:"leadId,omitempty"`
	Created bool       `json:"created"`
	Status  string     `json:"status,omitempty"`
}

// Service folds webhook events into leads and manages API keys.
type Service struct {
	campaigns CampaignFinder
	leads     LeadWriter
	keys      KeyRepository
	bus       events.Bus
	metrics   *Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new webhook service. bus and metrics may be nil.
func NewService(campaigns CampaignFinder, leads LeadWriter, keys KeyRepository, bus events.Bus, metrics *Metrics, log *logger.Logger) *Service {
	return &Service{
		campaigns: campaigns,
		leads:     leads,
		keys:      keys,
		bus:       bus,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// ProcessEvent applies one delivery for clientID. Deliveries that cannot be
// attributed are acknowledged with Ignored set so the provider stops
// retrying; only store failures return an error.
func (s *Service) ProcessEvent(ctx context.Context, clientID uuid.UUID, p reconcile.Provider, evt Event) (Result, error) {
	log := s.log.With("provider", p, "event", evt.RawType, "providerCampaignId", evt.ProviderCampaignID)

	if evt.Type == "" {
		log.Info("webhook: ignoring unmapped event")
		s.metrics.event(p, outcomeIgnored)
		return Result{Ignored: true, Reason: reasonUnknownEvent}, nil
	}

	campaign, err := s.campaigns.FindByProviderCampaign(ctx, p, evt.ProviderCampaignID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInternal, "resolve campaign", err)
	}
	if campaign == nil || campaign.ClientID != clientID {
		log.Warn("webhook: ignoring event for unknown campaign", "clientId", clientID)
		s.metrics.event(p, outcomeIgnored)
		return Result{Ignored: true, Reason: reasonUnknownCampaign, Event: evt.Type}, nil
	}

	email := reconcile.NormalizeEmail(evt.Email)
	if email == "" {
		log.Warn("webhook: ignoring event without lead email", "campaignId", campaign.ID)
		s.metrics.event(p, outcomeIgnored)
		return Result{Ignored: true, Reason: reasonMissingEmail, Event: evt.Type}, nil
	}

	in := reconcile.ProviderLead{
		Email:       strings.TrimSpace(evt.Email),
		FirstName:   evt.FirstName,
		LastName:    evt.LastName,
		CompanyName: evt.CompanyName,
	}
	at := evt.At
	if at.IsZero() {
		at = s.now()
	}
	reconcile.ApplyEvent(&in, evt.Type, evt.Sentiment, at)

	res, err := reconcile.Resolve(ctx, s.leads, campaign.ID, "", email)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInternal, "resolve lead", err)
	}

	payload := reconcile.Merge(res.Lead, in, reconcile.Denormalized{
		ClientID:     campaign.ClientID,
		CampaignName: campaign.Name,
		ClientName:   campaign.ClientName,
	})
	written, err := s.leads.Upsert(ctx, leadsrepo.Upsert{CampaignID: campaign.ID, Payload: payload})
	if err != nil {
		s.metrics.event(p, outcomeFailed)
		log.Error("webhook: lead write failed", "campaignId", campaign.ID, "email", email, "error", err)
		return Result{}, apperr.Wrap(apperr.KindInternal, "write lead", err)
	}

	projected := payload.Apply(res.Lead)
	wasPositive := res.Lead != nil && res.Lead.IsPositiveReply
	if !wasPositive && projected.IsPositiveReply {
		s.publishPositive(ctx, written.ID, campaign, email)
	}

	s.metrics.event(p, outcomeApplied)
	log.Info("webhook: event applied", "campaignId", campaign.ID, "leadId", written.ID, "created", written.Inserted, "status", projected.Status)

	id := written.ID
	return Result{Event: evt.Type, LeadID: &id, Created: written.Inserted, Status: string(projected.Status)}, nil
}

func (s *Service) publishPositive(ctx context.Context, leadID uuid.UUID, campaign *campaignsrepo.Campaign, email string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(context.WithoutCancel(ctx), events.LeadPositiveReplyDetected{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		CampaignID: campaign.ID,
		ClientID:   campaign.ClientID,
		Email:      email,
		Source:     events.SourceWebhook,
	})
}

// CreateKey issues a key for a client and provider. The plaintext is only
// returned here.
func (s *Service) CreateKey(ctx context.Context, clientID uuid.UUID, req CreateAPIKeyRequest) (CreateAPIKeyResponse, error) {
	p := reconcile.Provider(strings.ToLower(req.Provider))
	if !p.Valid() {
		return CreateAPIKeyResponse{}, apperr.Validation("unsupported provider")
	}
	if _, err := s.campaigns.GetClient(ctx, clientID); err != nil {
		return CreateAPIKeyResponse{}, err
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		return CreateAPIKeyResponse{}, apperr.Wrap(apperr.KindInternal, "failed to generate API key", err)
	}
	key, err := s.keys.Create(ctx, clientID, p, strings.TrimSpace(req.Name), hash, prefix)
	if err != nil {
		return CreateAPIKeyResponse{}, apperr.Wrap(apperr.KindInternal, "store API key", err)
	}

	s.log.Info("webhook key issued", "clientId", clientID, "provider", p, "keyPrefix", prefix)
	return CreateAPIKeyResponse{APIKeyResponse: toAPIKeyResponse(key), Key: plaintext}, nil
}

// ListKeys lists a client's keys without secrets.
func (s *Service) ListKeys(ctx context.Context, clientID uuid.UUID) ([]APIKeyResponse, error) {
	keys, err := s.keys.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list API keys", err)
	}
	result := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		result[i] = toAPIKeyResponse(k)
	}
	return result, nil
}

// RevokeKey deactivates a key.
func (s *Service) RevokeKey(ctx context.Context, clientID, keyID uuid.UUID) error {
	err := s.keys.Revoke(ctx, keyID, clientID)
	if errors.Is(err, ErrAPIKeyNotFound) {
		return apperr.NotFound("API key not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "revoke API key", err)
	}
	s.log.Info("webhook key revoked", "clientId", clientID, "keyId", keyID)
	return nil
}
