package scheduler

import (
	"context"
	"errors"
	"fmt"

	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/leadsync"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Runner executes the sync runs behind each task type.
type Runner interface {
	SyncCampaign(ctx context.Context, campaignID uuid.UUID, opts leadsync.Options) (leadsync.Result, error)
	SyncClient(ctx context.Context, clientID uuid.UUID, opts leadsync.Options) (leadsync.ClientResult, error)
	ResyncPositive(ctx context.Context, scope leadsync.ResyncScope, opts leadsync.Options) (leadsync.ResyncResult, error)
}

// ClientLister feeds the nightly sync.
type ClientLister interface {
	ListClients(ctx context.Context) ([]campaignsrepo.Client, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
	log    *logger.Logger

	clients ClientLister
}

func NewWorker(cfg config.SchedulerConfig, runner Runner, clients ClientLister, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(runner, clients, log)
	w.server = server
	return w, nil
}

func newWorker(runner Runner, clients ClientLister, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:     mux,
		runner:  runner,
		clients: clients,
		log:     log,
	}

	mux.HandleFunc(TaskCampaignSync, w.handleCampaignSync)
	mux.HandleFunc(TaskClientSync, w.handleClientSync)
	mux.HandleFunc(TaskPositiveResync, w.handlePositiveResync)
	mux.HandleFunc(TaskNightlySync, w.handleNightlySync)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// Run failures are recorded in sync_runs and logged; only malformed payloads
// are returned to asynq so a broken provider does not trigger retries.
func (w *Worker) handleCampaignSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	campaignID, err := payload.campaignID()
	if err != nil {
		return skipRetry(err)
	}
	if campaignID == nil {
		return skipRetry(errors.New("campaignId is required"))
	}

	res, err := w.runner.SyncCampaign(ctx, *campaignID, payload.Options())
	if err != nil {
		w.log.Error("queued campaign sync failed", "campaignId", campaignID.String(), "error", err)
		return nil
	}
	w.log.Info("queued campaign sync finished",
		"campaignId", campaignID.String(),
		"runId", res.RunID.String(),
		"mode", string(res.Mode),
	)
	return nil
}

func (w *Worker) handleClientSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	clientID, err := payload.clientID()
	if err != nil {
		return skipRetry(err)
	}
	if clientID == nil {
		return skipRetry(errors.New("clientId is required"))
	}

	w.syncClient(ctx, *clientID, payload.Options())
	return nil
}

func (w *Worker) handlePositiveResync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	campaignID, err := payload.campaignID()
	if err != nil {
		return skipRetry(err)
	}
	clientID, err := payload.clientID()
	if err != nil {
		return skipRetry(err)
	}
	scope := leadsync.ResyncScope{CampaignID: campaignID, ClientID: clientID}
	if scope.CampaignID == nil && scope.ClientID == nil {
		return skipRetry(leadsync.ErrScopeRequired)
	}

	res, err := w.runner.ResyncPositive(ctx, scope, payload.Options())
	if err != nil {
		w.log.Error("queued positive resync failed", "error", err)
		return nil
	}
	w.log.Info("queued positive resync finished",
		"runId", res.RunID.String(),
		"reset", res.Reset,
		"remarked", res.Remarked,
	)
	return nil
}

// handleNightlySync syncs every client in turn. A failing client does not
// stop the rest.
func (w *Worker) handleNightlySync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSyncPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	if w.clients == nil {
		return nil
	}

	clients, err := w.clients.ListClients(ctx)
	if err != nil {
		return err
	}

	opts := payload.Options()
	for _, client := range clients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.syncClient(ctx, client.ID, opts)
	}
	w.log.Info("nightly sync finished", "clients", len(clients), "mode", string(opts.Mode))
	return nil
}

func (w *Worker) syncClient(ctx context.Context, clientID uuid.UUID, opts leadsync.Options) {
	res, err := w.runner.SyncClient(ctx, clientID, opts)
	if err != nil {
		w.log.Error("client sync failed", "clientId", clientID.String(), "error", err)
		return
	}
	w.log.Info("client sync finished",
		"clientId", clientID.String(),
		"runId", res.RunID.String(),
		"processed", res.Processed,
		"failedRuns", res.FailedRuns,
	)
}

func skipRetry(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}
