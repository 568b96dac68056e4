package reconcile

import (
	"strings"
	"time"
)

// Canonical webhook event types. Provider adapters translate their own event
// names into these before the event reaches ApplyEvent.
const (
	EventEmailSent        = "email_sent"
	EventEmailOpened      = "email_opened"
	EventLinkClicked      = "email_link_clicked"
	EventReplyReceived    = "reply_received"
	EventInterested       = "lead_interested"
	EventMeetingBooked    = "lead_meeting_booked"
	EventMeetingCompleted = "lead_meeting_completed"
	EventClosed           = "lead_closed"
	EventNotInterested    = "lead_not_interested"
	EventWrongPerson      = "lead_wrong_person"
	EventUnsubscribed     = "lead_unsubscribed"
	EventNeutral          = "lead_neutral"
	EventOutOfOffice      = "lead_out_of_office"
)

type eventRule struct {
	status   Status
	interest InterestStatus
	opens    int
	clicks   int
	replies  int
}

var eventRules = map[string]eventRule{
	EventEmailSent:        {status: StatusContacted},
	EventEmailOpened:      {status: StatusOpened, opens: 1},
	EventLinkClicked:      {status: StatusClicked, clicks: 1},
	EventReplyReceived:    {status: StatusReplied, replies: 1},
	EventInterested:       {status: StatusReplied, interest: InterestInterested, replies: 1},
	EventMeetingBooked:    {status: StatusBooked, interest: InterestMeetingBooked},
	EventMeetingCompleted: {status: StatusWon, interest: InterestMeetingCompleted},
	EventClosed:           {status: StatusWon, interest: InterestClosed},
	EventNotInterested:    {status: StatusNotInterested, interest: InterestNotInterested},
	EventWrongPerson:      {status: StatusNotInterested, interest: InterestWrongPerson},
	EventUnsubscribed:     {status: StatusLost, interest: InterestLost},
	EventNeutral:          {interest: InterestNeutral},
	EventOutOfOffice:      {interest: InterestOutOfOffice},
}

// EventStatus returns the candidate status a webhook event argues for.
// Unknown events and events without a status signal return ok=false.
func EventStatus(eventType string) (Status, bool) {
	rule, ok := eventRules[eventType]
	if !ok || rule.status == "" {
		return "", false
	}
	return rule.status, true
}

// KnownEvent reports whether eventType has a mapping.
func KnownEvent(eventType string) bool {
	_, ok := eventRules[eventType]
	return ok
}

// SentimentInterest maps the optional sentiment attached to reply events.
func SentimentInterest(sentiment string) InterestStatus {
	switch strings.ToLower(strings.TrimSpace(sentiment)) {
	case "positive", "interested":
		return InterestInterested
	case "negative", "not_interested":
		return InterestNotInterested
	case "neutral":
		return InterestNeutral
	default:
		return InterestUnknown
	}
}

// ApplyEvent folds a webhook event into a provider record so it can flow
// through Merge like any synced lead. Counter bumps are expressed as a
// floor of one, which keeps redelivered events idempotent under the
// max-merge of counters. It returns false for unknown events.
func ApplyEvent(in *ProviderLead, eventType, sentiment string, at time.Time) bool {
	rule, ok := eventRules[eventType]
	if !ok {
		return false
	}

	in.OpenCount = max(in.OpenCount, rule.opens)
	in.ClickCount = max(in.ClickCount, rule.clicks)
	in.ReplyCount = max(in.ReplyCount, rule.replies)
	if rule.interest != InterestUnknown {
		in.Interest = rule.interest
	}
	if rule.replies > 0 {
		if s := SentimentInterest(sentiment); s != InterestUnknown && in.Interest == InterestUnknown {
			in.Interest = s
		}
		if !at.IsZero() {
			t := at.UTC()
			in.RespondedAt = &t
		}
	}
	if eventType == EventEmailSent && !at.IsZero() {
		t := at.UTC()
		in.LastContactedAt = &t
	}
	return true
}
