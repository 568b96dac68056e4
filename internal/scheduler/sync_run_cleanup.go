package scheduler

import (
	"context"
	"time"

	"bluereach_backend/platform/logger"
)

const syncRunCleanupInterval = 6 * time.Hour

// RunPruner deletes finished sync runs older than a cutoff.
type RunPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SyncRunCleanup struct {
	runs      RunPruner
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewSyncRunCleanup(runs RunPruner, retention time.Duration, log *logger.Logger) *SyncRunCleanup {
	return &SyncRunCleanup{
		runs:      runs,
		retention: retention,
		interval:  syncRunCleanupInterval,
		log:       log,
		now:       time.Now,
	}
}

func (c *SyncRunCleanup) Run(ctx context.Context) {
	if c == nil || c.runs == nil || c.retention <= 0 {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *SyncRunCleanup) cleanup(ctx context.Context) {
	cutoff := c.now().Add(-c.retention)
	deleted, err := c.runs.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		c.log.Warn("sync run cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		c.log.Info("sync runs pruned", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
