package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/campaigns"
	apphttp "bluereach_backend/internal/http"
	"bluereach_backend/internal/http/router"
	"bluereach_backend/internal/leads"
	"bluereach_backend/internal/leadsync"
	synchandler "bluereach_backend/internal/leadsync/handler"
	"bluereach_backend/internal/scheduler"
	"bluereach_backend/internal/webhook"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	stack, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true, Archive: true})
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		panic("failed to initialize application: " + err.Error())
	}
	defer stack.Close()

	enqueuer, closeScheduler := initSyncQueue(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	campaignsModule := campaigns.NewModule(stack.Pool, val, log)
	leadsModule := leads.NewModule(stack.Leads, stack.Campaigns, val, log)
	webhookModule := webhook.NewModule(
		stack.Pool,
		stack.Campaigns,
		stack.Leads,
		stack.Interest,
		stack.Bus,
		webhook.NewMetrics(stack.Metrics),
		val,
		log,
	)
	syncModule := synchandler.NewModule(
		stack.Orchestrator,
		stack.Runs,
		enqueuer,
		stack.Reports,
		cfg.GetMinioBucketSyncReports(),
		val,
	)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   stack.Pool,
		EventBus: stack.Bus,
		Metrics:  stack.Metrics,
		Modules: []apphttp.Module{
			campaignsModule,
			leadsModule,
			webhookModule,
			syncModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initSyncQueue returns a nil enqueuer when Redis is not configured; async
// sync triggers are then rejected.
func initSyncQueue(cfg config.SchedulerConfig, log *logger.Logger) (leadsync.Enqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; async sync triggers disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize sync queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
