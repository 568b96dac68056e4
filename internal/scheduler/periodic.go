package scheduler

import (
	"context"
	"fmt"

	"bluereach_backend/internal/leadsync"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Periodic registers the nightly sync on a cron schedule.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic returns nil when no cron spec is configured.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	spec := cfg.GetNightlySyncCron()
	if spec == "" {
		return nil, nil
	}

	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	opts := leadsync.Options{Mode: leadsync.ModeDryRun}
	if cfg.GetNightlySyncLive() {
		opts.Mode = leadsync.ModeLive
	}
	task, err := NewNightlySyncTask(opts)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	s := asynq.NewScheduler(opt, nil)
	if _, err := s.Register(spec, task, asynq.Queue(queue), asynq.Unique(defaultUniqueTTL), asynq.Timeout(taskTimeout)); err != nil {
		return nil, fmt.Errorf("register nightly sync %q: %w", spec, err)
	}
	log.Info("nightly sync scheduled", "cron", spec, "mode", string(opts.Mode))
	return &Periodic{scheduler: s, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("nightly scheduler stopped", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
