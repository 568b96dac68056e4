package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"
)

func TestInstantlyPayloadEvent(t *testing.T) {
	var p InstantlyPayload
	body := `{"event_type":"Reply_Received","timestamp":"2026-04-01T08:30:00.000Z","campaign_id":" c-9 ","email":"bo@example.com","sentiment":"positive"}`
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}

	evt := p.Event()
	if evt.Type != reconcile.EventReplyReceived {
		t.Fatalf("expected %s, got %q", reconcile.EventReplyReceived, evt.Type)
	}
	if evt.ProviderCampaignID != "c-9" || evt.Email != "bo@example.com" || evt.Sentiment != "positive" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if !evt.At.Equal(time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", evt.At)
	}
}

func TestInstantlyUnknownEventHasNoType(t *testing.T) {
	evt := InstantlyPayload{EventType: "auto_reply_received"}.Event()
	if evt.Type != "" || evt.RawType != "auto_reply_received" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestSmartleadPayloadEvent(t *testing.T) {
	interest := provider.MustLoadInterestMap()
	tests := []struct {
		name string
		body string
		want string
	}{
		{"open", `{"event_type":"EMAIL_OPEN","campaign_id":4242,"to_email":"x@y.co"}`, reconcile.EventEmailOpened},
		{"reply", `{"event_type":"EMAIL_REPLY","campaign_id":4242,"to_email":"x@y.co"}`, reconcile.EventReplyReceived},
		{"meeting request", `{"event_type":"LEAD_CATEGORY_UPDATED","campaign_id":4242,"to_email":"x@y.co","lead_category":{"new_name":"Meeting Request"}}`, reconcile.EventMeetingBooked},
		{"not interested", `{"event_type":"LEAD_CATEGORY_UPDATED","campaign_id":4242,"to_email":"x@y.co","lead_category":{"new_name":"Not Interested"}}`, reconcile.EventNotInterested},
		{"unknown category", `{"event_type":"LEAD_CATEGORY_UPDATED","campaign_id":4242,"lead_category":{"new_name":"Sponsor"}}`, ""},
		{"bounce", `{"event_type":"EMAIL_BOUNCE","campaign_id":4242}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p SmartleadPayload
			if err := json.Unmarshal([]byte(tt.body), &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			evt := p.Event(interest)
			if evt.Type != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, evt.Type)
			}
			if evt.ProviderCampaignID != "4242" {
				t.Fatalf("expected campaign 4242, got %q", evt.ProviderCampaignID)
			}
		})
	}
}

func TestSmartleadSplitsName(t *testing.T) {
	evt := SmartleadPayload{EventType: "EMAIL_SENT", ToName: "Ana de Vries", LeadEmail: "ana@example.com", ToEmail: "other@example.com"}.Event(nil)
	if evt.FirstName != "Ana" || evt.LastName != "de Vries" {
		t.Fatalf("unexpected name split: %q %q", evt.FirstName, evt.LastName)
	}
	if evt.Email != "ana@example.com" {
		t.Fatalf("expected sl_lead_email to win, got %q", evt.Email)
	}
}
