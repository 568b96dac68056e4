package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bluereach_backend/internal/bootstrap"
	"bluereach_backend/internal/scheduler"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/logger"
)

func main() {
	cfg, err := config.LoadBase()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Archive: true})
	if err != nil {
		log.Error("failed to initialize scheduler", "error", err)
		panic("failed to initialize scheduler: " + err.Error())
	}
	defer stack.Close()

	cleanup := scheduler.NewSyncRunCleanup(stack.Runs, cfg.GetSyncRunRetention(), log)
	go cleanup.Run(ctx)

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize nightly sync", "error", err)
		panic("failed to initialize nightly sync: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, stack.Orchestrator, stack.Campaigns, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
