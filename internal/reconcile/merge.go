package reconcile

import (
	"strings"
	"time"

	"bluereach_backend/platform/phone"

	"github.com/google/uuid"
)

// UpdatePayload is the set of changes a provider record may apply to a lead.
// Empty strings and nil pointers mean "keep the stored value". Operator-owned
// fields (notes, deal value, next action) have no place here.
type UpdatePayload struct {
	// Email is used only when the payload creates a new lead.
	Email         string
	FirstName     string
	LastName      string
	CompanyName   string
	CompanyDomain string
	Phone         string
	// ProviderLeadID is non-empty only when the stored id is null.
	ProviderLeadID string

	OpenCount  int
	ClickCount int
	ReplyCount int

	Status          Status
	IsPositiveReply bool
	HasReplied      bool

	LastContactedAt *time.Time
	RespondedAt     *time.Time
	Metadata        map[string]any

	Denormalized
}

// Merge computes the payload that folds incoming into existing. existing may
// be nil when the record creates a new lead.
func Merge(existing *Lead, incoming ProviderLead, names Denormalized) UpdatePayload {
	p := UpdatePayload{
		Email:           strings.TrimSpace(incoming.Email),
		FirstName:       strings.TrimSpace(incoming.FirstName),
		LastName:        strings.TrimSpace(incoming.LastName),
		CompanyName:     strings.TrimSpace(incoming.CompanyName),
		CompanyDomain:   normalizeDomain(incoming.CompanyDomain),
		Phone:           phone.NormalizeE164(incoming.Phone),
		OpenCount:       nonNegative(incoming.OpenCount),
		ClickCount:      nonNegative(incoming.ClickCount),
		ReplyCount:      nonNegative(incoming.ReplyCount),
		LastContactedAt: incoming.LastContactedAt,
		RespondedAt:     incoming.RespondedAt,
		Metadata:        incoming.Metadata,
		Denormalized:    names,
	}

	current := StatusContacted
	id := strings.TrimSpace(incoming.ProviderLeadID)
	if existing != nil {
		p.OpenCount = max(existing.OpenCount, p.OpenCount)
		p.ClickCount = max(existing.ClickCount, p.ClickCount)
		p.ReplyCount = max(existing.ReplyCount, p.ReplyCount)
		p.LastContactedAt = latest(existing.LastContactedAt, p.LastContactedAt)
		if existing.RespondedAt != nil {
			p.RespondedAt = existing.RespondedAt
		}
		if existing.ProviderLeadID != nil {
			id = ""
		}
		if existing.Status != "" {
			current = existing.Status
		}
	}
	p.ProviderLeadID = id

	p.Status = current
	if candidate, ok := CandidateStatus(incoming); ok {
		p.Status = ResolveStatus(current, candidate)
	}

	p.IsPositiveReply = IsPositive(incoming.Interest, p.ReplyCount, p.Status)
	p.HasReplied = p.ReplyCount > 0 || p.RespondedAt != nil || p.IsPositiveReply
	if existing != nil && existing.HasReplied {
		p.HasReplied = true
	}
	return p
}

// Apply projects the lead that results from writing p onto existing. It
// mirrors the merge expressions of the store's upsert and is what dry runs
// use to predict their outcome.
func (p UpdatePayload) Apply(existing *Lead) Lead {
	var out Lead
	if existing != nil {
		out = *existing
	} else {
		out = Lead{Email: p.Email, Status: StatusContacted}
	}

	out.FirstName = keep(out.FirstName, p.FirstName)
	out.LastName = keep(out.LastName, p.LastName)
	out.CompanyName = keep(out.CompanyName, p.CompanyName)
	out.CompanyDomain = keep(out.CompanyDomain, p.CompanyDomain)
	out.Phone = keep(out.Phone, p.Phone)
	if out.ProviderLeadID == nil && p.ProviderLeadID != "" {
		id := p.ProviderLeadID
		out.ProviderLeadID = &id
	}

	out.OpenCount = max(out.OpenCount, p.OpenCount)
	out.ClickCount = max(out.ClickCount, p.ClickCount)
	out.ReplyCount = max(out.ReplyCount, p.ReplyCount)
	out.Status = ResolveStatus(out.Status, p.Status)
	out.IsPositiveReply = out.IsPositiveReply || p.IsPositiveReply
	out.HasReplied = out.HasReplied || p.HasReplied
	out.LastContactedAt = latest(out.LastContactedAt, p.LastContactedAt)
	if out.RespondedAt == nil {
		out.RespondedAt = p.RespondedAt
	}

	if len(p.Metadata) > 0 {
		merged := make(map[string]any, len(out.Metadata)+len(p.Metadata))
		for k, v := range out.Metadata {
			merged[k] = v
		}
		for k, v := range p.Metadata {
			merged[k] = v
		}
		out.Metadata = merged
	}

	if p.ClientID != uuid.Nil {
		out.ClientID = p.ClientID
	}
	out.CampaignName = keep(out.CampaignName, p.CampaignName)
	out.ClientName = keep(out.ClientName, p.ClientName)
	return out
}

func keep(stored, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return stored
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}
