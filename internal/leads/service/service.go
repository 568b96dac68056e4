// Package service holds the operator-facing lead operations. Sync writes go
// through the leadsync package; nothing here touches provider-owned fields
// except the explicit status override.
package service

import (
	"context"
	"errors"
	"math"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/leads/transport"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/apperr"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxDealValue    = 1e12
)

var errLeadNotFound = apperr.NotFound("lead not found")

// Store is the subset of the lead repository used by the service.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (reconcile.Lead, error)
	ListByCampaign(ctx context.Context, params repository.ListParams) ([]reconcile.Lead, int, error)
	UpdateOperatorFields(ctx context.Context, id uuid.UUID, fields repository.OperatorFields) (reconcile.Lead, error)
	SetStatusManual(ctx context.Context, id uuid.UUID, status reconcile.Status) (reconcile.Lead, error)
	CountAggregates(ctx context.Context, scope repository.Scope) (repository.Aggregates, error)
	StatusCounts(ctx context.Context, scope repository.Scope) (map[string]int, error)
}

// CampaignLookup resolves the owning client of a campaign.
type CampaignLookup interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (campaignsrepo.Campaign, error)
}

// Accessor decides which clients the caller may see.
type Accessor interface {
	CanAccessClient(clientID uuid.UUID) bool
}

// Service provides lead read and operator edit operations.
type Service struct {
	store     Store
	campaigns CampaignLookup
	log       *logger.Logger
}

// New creates a new leads service.
func New(store Store, campaigns CampaignLookup, log *logger.Logger) *Service {
	return &Service{store: store, campaigns: campaigns, log: log}
}

// ListByCampaign lists one page of a campaign's leads.
func (s *Service) ListByCampaign(ctx context.Context, who Accessor, campaignID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	if !who.CanAccessClient(campaign.ClientID) {
		return transport.LeadListResponse{}, apperr.Forbidden("no access to this campaign")
	}

	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	params := repository.ListParams{
		CampaignID:   campaignID,
		PositiveOnly: req.Positive,
		Search:       req.Search,
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	}
	if req.Status != "" {
		status, err := reconcile.ParseStatus(req.Status)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation(err.Error())
		}
		params.Status = &status
	}

	items, total, err := s.store.ListByCampaign(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, apperr.Wrap(apperr.KindInternal, "list leads", err)
	}

	resp := transport.LeadListResponse{
		Items:      make([]transport.LeadResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	for _, lead := range items {
		resp.Items = append(resp.Items, ToLeadResponse(lead))
	}
	return resp, nil
}

// UpdateOperatorFields edits notes, deal value and next action.
func (s *Service) UpdateOperatorFields(ctx context.Context, who Accessor, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	if _, err := s.authorize(ctx, who, id); err != nil {
		return transport.LeadResponse{}, err
	}

	fields := repository.OperatorFields{
		Notes:          sanitize.TextPtr(req.Notes),
		NextAction:     sanitize.TextPtr(req.NextAction),
		ClearDealValue: req.DealValue.Cleared(),
	}
	if v := req.DealValue.Value; v != nil {
		if math.IsNaN(*v) || *v < 0 || *v > maxDealValue {
			return transport.LeadResponse{}, apperr.Validation("dealValue must be between 0 and 1e12")
		}
		fields.DealValue = v
	}

	lead, err := s.store.UpdateOperatorFields(ctx, id, fields)
	if err != nil {
		return transport.LeadResponse{}, mapStoreError(err)
	}
	return ToLeadResponse(lead), nil
}

// SetStatus overrides a lead's status. This is the only path that can move a
// lead backwards or out of a terminal status.
func (s *Service) SetStatus(ctx context.Context, who Accessor, id uuid.UUID, req transport.UpdateLeadStatusRequest) (transport.LeadResponse, error) {
	current, err := s.authorize(ctx, who, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	status, err := reconcile.ParseStatus(req.Status)
	if err != nil {
		return transport.LeadResponse{}, apperr.Validation(err.Error())
	}

	lead, err := s.store.SetStatusManual(ctx, id, status)
	if err != nil {
		return transport.LeadResponse{}, mapStoreError(err)
	}
	s.log.Info("lead status overridden", "leadId", id, "from", current.Status, "to", status)
	return ToLeadResponse(lead), nil
}

// CampaignStats returns the lead aggregates of a campaign.
func (s *Service) CampaignStats(ctx context.Context, campaignID uuid.UUID) (transport.CampaignStatsResponse, error) {
	if _, err := s.campaigns.GetCampaign(ctx, campaignID); err != nil {
		return transport.CampaignStatsResponse{}, err
	}

	scope := repository.Scope{CampaignID: &campaignID}
	agg, err := s.store.CountAggregates(ctx, scope)
	if err != nil {
		return transport.CampaignStatsResponse{}, apperr.Wrap(apperr.KindInternal, "count leads", err)
	}
	byStatus, err := s.store.StatusCounts(ctx, scope)
	if err != nil {
		return transport.CampaignStatsResponse{}, apperr.Wrap(apperr.KindInternal, "count lead statuses", err)
	}

	return transport.CampaignStatsResponse{
		CampaignID:   campaignID,
		Total:        agg.Total,
		Replied:      agg.Replied,
		Positive:     agg.Positive,
		ReplyRate:    ratio(agg.Replied, agg.Total),
		PositiveRate: ratio(agg.Positive, agg.Total),
		ByStatus:     byStatus,
	}, nil
}

func (s *Service) authorize(ctx context.Context, who Accessor, id uuid.UUID) (reconcile.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return reconcile.Lead{}, mapStoreError(err)
	}
	if !who.CanAccessClient(lead.ClientID) {
		return reconcile.Lead{}, errLeadNotFound
	}
	return lead, nil
}

func mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errLeadNotFound
	}
	return apperr.Wrap(apperr.KindInternal, "lead store", err)
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 10000
}

// ToLeadResponse maps a canonical lead to its API representation.
func ToLeadResponse(lead reconcile.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:              lead.ID,
		CampaignName:    lead.CampaignName,
		ClientName:      lead.ClientName,
		Email:           lead.Email,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		CompanyName:     lead.CompanyName,
		CompanyDomain:   lead.CompanyDomain,
		Phone:           lead.Phone,
		ProviderLeadID:  lead.ProviderLeadID,
		Status:          string(lead.Status),
		IsPositiveReply: lead.IsPositiveReply,
		HasReplied:      lead.HasReplied,
		OpenCount:       lead.OpenCount,
		ClickCount:      lead.ClickCount,
		ReplyCount:      lead.ReplyCount,
		LastContactedAt: lead.LastContactedAt,
		RespondedAt:     lead.RespondedAt,
		Notes:           lead.Notes,
		DealValue:       lead.DealValue,
		NextAction:      lead.NextAction,
		Metadata:        lead.Metadata,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
	if lead.CampaignID != uuid.Nil {
		id := lead.CampaignID
		resp.CampaignID = &id
	}
	if lead.ClientID != uuid.Nil {
		id := lead.ClientID
		resp.ClientID = &id
	}
	return resp
}
