package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrUnresolvable marks a provider record with neither an email nor a
// provider lead id. Callers skip and count it.
var ErrUnresolvable = errors.New("provider lead has neither email nor provider id")

// MatchedBy records which key located an existing lead.
type MatchedBy string

const (
	MatchedByID    MatchedBy = "id"
	MatchedByEmail MatchedBy = "email"
	MatchedByNone  MatchedBy = "none"
)

// Finder looks up leads within one campaign. Both methods return a nil lead
// and a nil error when nothing matches.
type Finder interface {
	FindByProviderID(ctx context.Context, campaignID uuid.UUID, providerLeadID string) (*Lead, error)
	FindByEmail(ctx context.Context, campaignID uuid.UUID, email string) (*Lead, error)
}

// Resolution is the outcome of an identity lookup.
type Resolution struct {
	Lead      *Lead
	MatchedBy MatchedBy
	// BackfillProviderID is set when the lead was matched by email, has no
	// provider id yet and the incoming record carries one.
	BackfillProviderID bool
}

// Found reports whether an existing lead was matched.
func (r Resolution) Found() bool {
	return r.Lead != nil
}

// NormalizeEmail trims and lower-cases an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate rejects records whose identity cannot be resolved.
func Validate(in ProviderLead) error {
	if NormalizeEmail(in.Email) == "" && strings.TrimSpace(in.ProviderLeadID) == "" {
		return ErrUnresolvable
	}
	return nil
}

// Resolve finds the lead a provider record belongs to. The provider id is
// tried first, then the normalized email. Matching never crosses campaigns.
func Resolve(ctx context.Context, f Finder, campaignID uuid.UUID, providerLeadID, email string) (Resolution, error) {
	providerLeadID = strings.TrimSpace(providerLeadID)
	email = NormalizeEmail(email)

	if providerLeadID != "" {
		lead, err := f.FindByProviderID(ctx, campaignID, providerLeadID)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by provider id: %w", err)
		}
		if lead != nil {
			return Resolution{Lead: lead, MatchedBy: MatchedByID}, nil
		}
	}

	if email != "" {
		lead, err := f.FindByEmail(ctx, campaignID, email)
		if err != nil {
			return Resolution{}, fmt.Errorf("find by email: %w", err)
		}
		if lead != nil {
			return Resolution{
				Lead:               lead,
				MatchedBy:          MatchedByEmail,
				BackfillProviderID: providerLeadID != "" && lead.ProviderLeadID == nil,
			}, nil
		}
	}

	return Resolution{MatchedBy: MatchedByNone}, nil
}
