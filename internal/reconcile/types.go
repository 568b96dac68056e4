// Package reconcile holds the rules that map provider lead records and
// webhook events onto the canonical lead row: identity matching, field
// merging, status resolution and positive-reply classification.
//
// Everything here is deterministic. The only I/O happens through the Finder
// port used by Resolve.
package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies the cold-email platform a campaign is synced from.
type Provider string

const (
	ProviderInstantly Provider = "instantly"
	ProviderSmartlead Provider = "smartlead"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderInstantly || p == ProviderSmartlead
}

// InterestStatus is the provider-neutral interest classification of a lead.
// Each provider client converts its own values into one of these.
type InterestStatus string

const (
	InterestUnknown          InterestStatus = ""
	InterestInterested       InterestStatus = "interested"
	InterestMeetingBooked    InterestStatus = "meeting_booked"
	InterestMeetingCompleted InterestStatus = "meeting_completed"
	InterestClosed           InterestStatus = "closed"
	InterestNotInterested    InterestStatus = "not_interested"
	InterestWrongPerson      InterestStatus = "wrong_person"
	InterestLost             InterestStatus = "lost"
	InterestOutOfOffice      InterestStatus = "out_of_office"
	InterestNeutral          InterestStatus = "neutral"
)

var knownInterest = map[InterestStatus]struct{}{
	InterestUnknown:          {},
	InterestInterested:       {},
	InterestMeetingBooked:    {},
	InterestMeetingCompleted: {},
	InterestClosed:           {},
	InterestNotInterested:    {},
	InterestWrongPerson:      {},
	InterestLost:             {},
	InterestOutOfOffice:      {},
	InterestNeutral:          {},
}

// ParseInterest converts a canonical interest string. Unrecognised values
// map to InterestUnknown with ok=false.
func ParseInterest(value string) (InterestStatus, bool) {
	s := InterestStatus(value)
	if _, ok := knownInterest[s]; ok {
		return s, true
	}
	return InterestUnknown, false
}

// ProviderLead is the canonical inbound lead record. Provider clients build it
// from their typed payloads at the boundary; raw provider JSON never reaches
// the reconciliation rules.
type ProviderLead struct {
	ProviderLeadID  string
	Email           string
	FirstName       string
	LastName        string
	CompanyName     string
	CompanyDomain   string
	Phone           string
	Interest        InterestStatus
	ReplyCount      int
	OpenCount       int
	ClickCount      int
	LastContactedAt *time.Time
	RespondedAt     *time.Time
	Metadata        map[string]any
}

// Lead is the canonical lead row as seen by the reconciliation rules.
type Lead struct {
	ID              uuid.UUID
	CampaignID      uuid.UUID
	ClientID        uuid.UUID
	CampaignName    string
	ClientName      string
	Email           string
	FirstName       string
	LastName        string
	CompanyName     string
	CompanyDomain   string
	Phone           string
	ProviderLeadID  *string
	Status          Status
	IsPositiveReply bool
	HasReplied      bool
	OpenCount       int
	ClickCount      int
	ReplyCount      int
	CreatedAt       time.Time
	LastContactedAt *time.Time
	RespondedAt     *time.Time
	UpdatedAt       time.Time
	Metadata        map[string]any

	// Operator-owned. Sync paths read these only to carry them through a
	// projection unchanged.
	Notes      string
	DealValue  *float64
	NextAction string
}

// Denormalized carries the campaign and client names copied onto every lead
// so lead history survives campaign deletion.
type Denormalized struct {
	ClientID     uuid.UUID
	CampaignName string
	ClientName   string
}
