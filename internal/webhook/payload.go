package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"
)

// Event is a provider webhook delivery translated to canonical names. Type is
// empty when the provider event has no canonical counterpart.
type Event struct {
	Type               string
	RawType            string
	ProviderCampaignID string
	Email              string
	FirstName          string
	LastName           string
	CompanyName        string
	Sentiment          string
	At                 time.Time
}

// InstantlyPayload is the body Instantly posts for every subscribed event.
type InstantlyPayload struct {
	EventType   string `json:"event_type"`
	Timestamp   string `json:"timestamp"`
	CampaignID  string `json:"campaign_id"`
	LeadEmail   string `json:"lead_email"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	Sentiment   string `json:"sentiment"`
}

// Event translates the payload. Instantly already uses the canonical event
// names.
func (p InstantlyPayload) Event() Event {
	email := p.LeadEmail
	if strings.TrimSpace(email) == "" {
		email = p.Email
	}
	raw := strings.ToLower(strings.TrimSpace(p.EventType))
	evt := Event{
		RawType:            raw,
		ProviderCampaignID: strings.TrimSpace(p.CampaignID),
		Email:              email,
		FirstName:          p.FirstName,
		LastName:           p.LastName,
		CompanyName:        p.CompanyName,
		Sentiment:          p.Sentiment,
		At:                 parseTimestamp(p.Timestamp),
	}
	if reconcile.KnownEvent(raw) {
		evt.Type = raw
	}
	return evt
}

// SmartleadPayload is the body Smartlead posts. campaign_id arrives as a
// number.
type SmartleadPayload struct {
	EventType      string      `json:"event_type"`
	EventTimestamp string      `json:"event_timestamp"`
	CampaignID     json.Number `json:"campaign_id"`
	ToEmail        string      `json:"to_email"`
	LeadEmail      string      `json:"sl_lead_email"`
	ToName         string      `json:"to_name"`
	Sentiment      string      `json:"sentiment"`
	LeadCategory   *struct {
		NewName string `json:"new_name"`
	} `json:"lead_category"`
}

var smartleadEvents = map[string]string{
	"EMAIL_SENT":        reconcile.EventEmailSent,
	"EMAIL_OPEN":        reconcile.EventEmailOpened,
	"EMAIL_LINK_CLICK":  reconcile.EventLinkClicked,
	"EMAIL_REPLY":       reconcile.EventReplyReceived,
	"LEAD_UNSUBSCRIBED": reconcile.EventUnsubscribed,
}

var interestEvents = map[reconcile.InterestStatus]string{
	reconcile.InterestInterested:       reconcile.EventInterested,
	reconcile.InterestMeetingBooked:    reconcile.EventMeetingBooked,
	reconcile.InterestMeetingCompleted: reconcile.EventMeetingCompleted,
	reconcile.InterestClosed:           reconcile.EventClosed,
	reconcile.InterestNotInterested:    reconcile.EventNotInterested,
	reconcile.InterestWrongPerson:      reconcile.EventWrongPerson,
	reconcile.InterestLost:             reconcile.EventUnsubscribed,
	reconcile.InterestOutOfOffice:      reconcile.EventOutOfOffice,
	reconcile.InterestNeutral:          reconcile.EventNeutral,
}

// Event translates the payload. Category updates are mapped through the
// shared interest table.
func (p SmartleadPayload) Event(interest *provider.InterestMap) Event {
	email := p.LeadEmail
	if strings.TrimSpace(email) == "" {
		email = p.ToEmail
	}
	first, last, _ := strings.Cut(strings.TrimSpace(p.ToName), " ")
	raw := strings.ToUpper(strings.TrimSpace(p.EventType))
	evt := Event{
		RawType:            raw,
		ProviderCampaignID: p.CampaignID.String(),
		Email:              email,
		FirstName:          first,
		LastName:           last,
		Sentiment:          p.Sentiment,
		At:                 parseTimestamp(p.EventTimestamp),
	}

	if raw == "LEAD_CATEGORY_UPDATED" && p.LeadCategory != nil {
		evt.Type = interestEvents[interest.Lookup(reconcile.ProviderSmartlead, p.LeadCategory.NewName)]
		return evt
	}
	evt.Type = smartleadEvents[raw]
	return evt
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
