// Package leadsync pulls campaign leads from the providers and folds them into
// the canonical lead table. It also runs the positive-reply reconciliation
// pass and the responded_at backfill.
package leadsync

import (
	"errors"
	"time"

	"bluereach_backend/internal/events"
	"bluereach_backend/platform/config"

	"github.com/google/uuid"
)

// Mode selects whether a run writes.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeLive   Mode = "live"
)

// Kinds of recorded runs.
const (
	KindCampaign       = "campaign"
	KindClient         = "client"
	KindPositiveResync = "positive_resync"
	KindReplyBackfill  = "reply_backfill"
)

var (
	// ErrFetchFailed marks a run that could not read a single page.
	ErrFetchFailed = errors.New("provider fetch failed")
	// ErrScopeRequired marks a resync called without a campaign or client.
	ErrScopeRequired = errors.New("campaign or client scope is required")
	// ErrAlreadyQueued marks an async trigger for a run that is still queued.
	ErrAlreadyQueued = errors.New("a run for this target is already queued")
)

// Options control a single run.
type Options struct {
	Mode Mode
	// Targeted updates existing leads only and counts unmatched records as
	// not found.
	Targeted bool
}

// Live reports whether the run writes.
func (o Options) Live() bool { return o.Mode == ModeLive }

func (o Options) mode() Mode {
	if o.Mode == ModeLive {
		return ModeLive
	}
	return ModeDryRun
}

// Result summarizes one campaign sync.
type Result struct {
	RunID            uuid.UUID     `json:"runId"`
	Mode             Mode          `json:"mode"`
	Targeted         bool          `json:"targeted"`
	CampaignID       uuid.UUID     `json:"campaignId"`
	CampaignName     string        `json:"campaignName"`
	ClientID         uuid.UUID     `json:"clientId"`
	Pages            int           `json:"pages"`
	PageRetries      int           `json:"pageRetries"`
	Fetched          int           `json:"fetched"`
	Imported         int           `json:"imported"`
	Updated          int           `json:"updated"`
	Failed           int           `json:"failed"`
	NotFound         int           `json:"notFound"`
	Skipped          int           `json:"skipped"`
	PositiveDetected int           `json:"positiveDetected"`
	Aborted          bool          `json:"aborted"`
	AbortReason      string        `json:"abortReason,omitempty"`
	ErrorCount       int           `json:"errorCount"`
	Errors           []string      `json:"errors"`
	Before           events.Counts `json:"before"`
	After            events.Counts `json:"after"`
	StartedAt        time.Time     `json:"startedAt"`
	FinishedAt       time.Time     `json:"finishedAt"`
}

// Processed is the number of records that reached a terminal outcome.
func (r Result) Processed() int {
	return r.Imported + r.Updated + r.Failed + r.NotFound + r.Skipped
}

// ClientResult summarizes a sequential sync over a client's campaigns.
type ClientResult struct {
	RunID         uuid.UUID     `json:"runId"`
	Mode          Mode          `json:"mode"`
	ClientID      uuid.UUID     `json:"clientId"`
	ClientName    string        `json:"clientName"`
	Processed     int           `json:"processed"`
	Misconfigured int           `json:"misconfigured"`
	FailedRuns    int           `json:"failedRuns"`
	Imported      int           `json:"imported"`
	Updated       int           `json:"updated"`
	Failed        int           `json:"failed"`
	NotFound      int           `json:"notFound"`
	Skipped       int           `json:"skipped"`
	Campaigns     []Result      `json:"campaigns"`
	Unconfigured  []uuid.UUID   `json:"unconfiguredCampaigns"`
	Errors        []string      `json:"errors"`
	Before        events.Counts `json:"before"`
	After         events.Counts `json:"after"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// ResyncScope selects the leads a positive resync covers.
type ResyncScope struct {
	CampaignID *uuid.UUID
	ClientID   *uuid.UUID
}

// ResyncCampaign is the outcome of the reconciliation pass for one campaign.
type ResyncCampaign struct {
	CampaignID       uuid.UUID `json:"campaignId"`
	CampaignName     string    `json:"campaignName"`
	Fetched          int       `json:"fetched"`
	Unresolved       int       `json:"unresolved"`
	Reset            int       `json:"reset"`
	Remarked         int       `json:"remarked"`
	Retained         int       `json:"retained"`
	Retracted        int       `json:"retracted"`
	Added            int       `json:"added"`
	ExpectedPositive int       `json:"expectedPositive"`
	Error            string    `json:"error,omitempty"`
}

// ResyncResult summarizes a positive resync.
type ResyncResult struct {
	RunID         uuid.UUID        `json:"runId"`
	Mode          Mode             `json:"mode"`
	CampaignID    *uuid.UUID       `json:"campaignId,omitempty"`
	ClientID      *uuid.UUID       `json:"clientId,omitempty"`
	Campaigns     []ResyncCampaign `json:"campaigns"`
	Misconfigured int              `json:"misconfigured"`
	Reset         int              `json:"reset"`
	Remarked      int              `json:"remarked"`
	Failed        int              `json:"failed"`
	Errors        []string         `json:"errors"`
	Before        events.Counts    `json:"before"`
	After         events.Counts    `json:"after"`
	StartedAt     time.Time        `json:"startedAt"`
	FinishedAt    time.Time        `json:"finishedAt"`
}

// BackfillResult summarizes a responded_at backfill.
type BackfillResult struct {
	RunID      uuid.UUID `json:"runId"`
	Mode       Mode      `json:"mode"`
	CampaignID uuid.UUID `json:"campaignId"`
	Candidates int       `json:"candidates"`
	Filled     int       `json:"filled"`
	NoReply    int       `json:"noReply"`
	Failed     int       `json:"failed"`
	Chunks     int       `json:"chunks"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Settings tune the orchestrator.
type Settings struct {
	PageSize               int
	PageDelay              time.Duration
	BatchSize              int
	MaxConsecutiveFailures int
	RetryBaseDelay         time.Duration
	ErrorLimit             int
	LockTTL                time.Duration
	BackfillConcurrency    int
	BackfillChunkDelay     time.Duration
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		PageSize:               100,
		PageDelay:              150 * time.Millisecond,
		BatchSize:              100,
		MaxConsecutiveFailures: 5,
		RetryBaseDelay:         time.Second,
		ErrorLimit:             20,
		LockTTL:                30 * time.Minute,
		BackfillConcurrency:    5,
		BackfillChunkDelay:     200 * time.Millisecond,
	}
}

// SettingsFrom reads settings from configuration, keeping defaults for unset
// or invalid values.
func SettingsFrom(cfg config.SyncConfig) Settings {
	s := DefaultSettings()
	if cfg.GetSyncPageSize() > 0 {
		s.PageSize = cfg.GetSyncPageSize()
	}
	if cfg.GetSyncPageDelay() >= 0 {
		s.PageDelay = cfg.GetSyncPageDelay()
	}
	if cfg.GetSyncBatchSize() > 0 {
		s.BatchSize = cfg.GetSyncBatchSize()
	}
	if cfg.GetSyncMaxConsecutiveFailures() > 0 {
		s.MaxConsecutiveFailures = cfg.GetSyncMaxConsecutiveFailures()
	}
	if cfg.GetSyncRetryBaseDelay() > 0 {
		s.RetryBaseDelay = cfg.GetSyncRetryBaseDelay()
	}
	if cfg.GetSyncErrorLimit() > 0 {
		s.ErrorLimit = cfg.GetSyncErrorLimit()
	}
	if cfg.GetSyncLockTTL() > 0 {
		s.LockTTL = cfg.GetSyncLockTTL()
	}
	if cfg.GetBackfillConcurrency() > 0 {
		s.BackfillConcurrency = cfg.GetBackfillConcurrency()
	}
	if cfg.GetBackfillChunkDelay() >= 0 {
		s.BackfillChunkDelay = cfg.GetBackfillChunkDelay()
	}
	return s
}

// errorList collects run errors up to a limit while counting all of them.
type errorList struct {
	limit int
	items []string
	count int
}

func newErrorList(limit int) *errorList {
	return &errorList{limit: limit, items: make([]string, 0)}
}

func (e *errorList) add(msg string) {
	e.count++
	if len(e.items) < e.limit {
		e.items = append(e.items, msg)
	}
}
