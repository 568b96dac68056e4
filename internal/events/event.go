// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"bluereach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent = events.NewBaseEvent
	BaseEventAt  = events.BaseEventAt
)

// =============================================================================
// Lead Domain Events
// =============================================================================

// Sources of a positive-reply detection.
const (
	SourceSync    = "sync"
	SourceWebhook = "webhook"
	SourceResync  = "positive_resync"
)

// LeadPositiveReplyDetected is published when a live write flips a lead's
// is_positive_reply from false to true.
type LeadPositiveReplyDetected struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CampaignID uuid.UUID `json:"campaignId"`
	ClientID   uuid.UUID `json:"clientId"`
	Email      string    `json:"email"`
	Source     string    `json:"source"`
}

func (e LeadPositiveReplyDetected) EventName() string { return "leads.positive_reply.detected" }

// =============================================================================
// Sync Domain Events
// =============================================================================

// Counts are aggregate lead counts captured before and after a run.
type Counts struct {
	Total    int `json:"total"`
	Replied  int `json:"replied"`
	Positive int `json:"positive"`
}

// SyncCompleted is published once per finished sync, resync or backfill run,
// dry runs included.
type SyncCompleted struct {
	BaseEvent
	RunID      uuid.UUID  `json:"runId"`
	Kind       string     `json:"kind"`
	Mode       string     `json:"mode"`
	CampaignID *uuid.UUID `json:"campaignId,omitempty"`
	ClientID   *uuid.UUID `json:"clientId,omitempty"`
	Imported   int        `json:"imported"`
	Updated    int        `json:"updated"`
	Failed     int        `json:"failed"`
	NotFound   int        `json:"notFound"`
	Skipped    int        `json:"skipped"`
	Aborted    bool       `json:"aborted"`
	Errors     []string   `json:"errors"`
	Before     Counts     `json:"before"`
	After      Counts     `json:"after"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	// Report is the full JSON result, archived alongside the run row.
	Report []byte `json:"-"`
}

func (e SyncCompleted) EventName() string { return "leadsync.run.completed" }
