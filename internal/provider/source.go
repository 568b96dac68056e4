// Package provider defines the lead source boundary for the cold-email
// platforms and the registry that picks a client per campaign.
package provider

import (
	"context"
	"errors"
	"time"

	"bluereach_backend/internal/reconcile"
)

var (
	// ErrNotConfigured marks a campaign without provider credentials.
	ErrNotConfigured = errors.New("campaign has no provider API key")
	// ErrUnknownProvider marks a campaign whose provider has no client.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Target identifies one provider-side campaign and the key used to read it.
type Target struct {
	Provider           reconcile.Provider
	ProviderCampaignID string
	APIKey             string
}

// Source reads leads from a provider. Implementations convert their typed
// payloads into canonical records before returning.
type Source interface {
	// ListLeads returns one page of leads. A page shorter than limit is the
	// last one.
	ListLeads(ctx context.Context, t Target, limit, skip int) ([]reconcile.ProviderLead, error)
	// ListPositiveLeads returns every lead the provider currently classifies
	// as a positive reply.
	ListPositiveLeads(ctx context.Context, t Target) ([]reconcile.ProviderLead, error)
	// LastReplyAt returns when the lead last replied, or nil if the thread
	// holds no reply.
	LastReplyAt(ctx context.Context, t Target, lead reconcile.ProviderLead) (*time.Time, error)
}

// Pager is the paging half of Source.
type Pager interface {
	ListLeads(ctx context.Context, t Target, limit, skip int) ([]reconcile.ProviderLead, error)
}

// PositivePageSize is the page size used when collecting positive leads.
const PositivePageSize = 100

// CollectPositive pages through every lead and keeps the ones whose provider
// record classifies as a positive reply.
func CollectPositive(ctx context.Context, p Pager, t Target) ([]reconcile.ProviderLead, error) {
	var out []reconcile.ProviderLead
	for skip := 0; ; skip += PositivePageSize {
		page, err := p.ListLeads(ctx, t, PositivePageSize, skip)
		if err != nil {
			return nil, err
		}
		for _, lead := range page {
			if IsPositiveRecord(lead) {
				out = append(out, lead)
			}
		}
		if len(page) < PositivePageSize {
			return out, nil
		}
	}
}

// IsPositiveRecord classifies a provider record on its own signals.
func IsPositiveRecord(lead reconcile.ProviderLead) bool {
	status := reconcile.StatusContacted
	if candidate, ok := reconcile.CandidateStatus(lead); ok {
		status = candidate
	}
	return reconcile.IsPositive(lead.Interest, lead.ReplyCount, status)
}
