package leadsync

import (
	"context"
	"fmt"

	"bluereach_backend/internal/events"
	runsrepo "bluereach_backend/internal/leadsync/repository"
	"bluereach_backend/platform/logger"
)

// RunStore persists run history.
type RunStore interface {
	Insert(ctx context.Context, run runsrepo.Run) error
}

// ReportArchive stores full JSON run reports.
type ReportArchive interface {
	PutJSON(ctx context.Context, bucket, folder, name string, body []byte) (string, error)
}

// Recorder writes every completed run to sync_runs and archives its report
// when an archive is configured.
type Recorder struct {
	runs    RunStore
	archive ReportArchive
	bucket  string
	log     *logger.Logger
}

// NewRecorder creates a recorder. archive may be nil.
func NewRecorder(runs RunStore, archive ReportArchive, bucket string, log *logger.Logger) *Recorder {
	return &Recorder{runs: runs, archive: archive, bucket: bucket, log: log}
}

// RegisterHandlers subscribes the recorder to run and detection events.
func (r *Recorder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SyncCompleted{}.EventName(), r)
	bus.Subscribe(events.LeadPositiveReplyDetected{}.EventName(), r)
}

// Handle routes events to the matching handler.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SyncCompleted:
		return r.handleSyncCompleted(ctx, e)
	case events.LeadPositiveReplyDetected:
		r.log.Info("positive reply detected",
			"leadId", e.LeadID,
			"campaignId", e.CampaignID,
			"clientId", e.ClientID,
			"source", e.Source,
		)
		return nil
	default:
		return nil
	}
}

func (r *Recorder) handleSyncCompleted(ctx context.Context, e events.SyncCompleted) error {
	run := runsrepo.Run{
		ID:             e.RunID,
		CampaignID:     e.CampaignID,
		ClientID:       e.ClientID,
		Kind:           e.Kind,
		Mode:           e.Mode,
		Imported:       e.Imported,
		Updated:        e.Updated,
		Failed:         e.Failed,
		NotFound:       e.NotFound,
		Skipped:        e.Skipped,
		Aborted:        e.Aborted,
		Errors:         e.Errors,
		BeforeTotal:    e.Before.Total,
		BeforeReplied:  e.Before.Replied,
		BeforePositive: e.Before.Positive,
		AfterTotal:     e.After.Total,
		AfterReplied:   e.After.Replied,
		AfterPositive:  e.After.Positive,
		StartedAt:      e.StartedAt,
		FinishedAt:     e.FinishedAt,
	}

	if r.archive != nil && len(e.Report) > 0 {
		folder := fmt.Sprintf("%s/%s", e.Kind, e.StartedAt.UTC().Format("2006-01-02"))
		key, err := r.archive.PutJSON(ctx, r.bucket, folder, e.RunID.String(), e.Report)
		if err != nil {
			r.log.Warn("archive sync report failed", "runId", e.RunID, "error", err)
		} else {
			run.ReportKey = &key
		}
	}

	if r.runs == nil {
		return nil
	}
	if err := r.runs.Insert(ctx, run); err != nil {
		r.log.DatabaseError("insert sync run", err)
		return fmt.Errorf("record sync run %s: %w", e.RunID, err)
	}
	return nil
}
