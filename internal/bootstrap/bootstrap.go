// Package bootstrap wires the infrastructure and the sync stack shared by the
// API server, the scheduler worker and the maintenance commands.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bluereach_backend/internal/adapters/storage"
	campaignsrepo "bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/events"
	leadsrepo "bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/leadsync"
	runsrepo "bluereach_backend/internal/leadsync/repository"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/provider/httpclient"
	"bluereach_backend/internal/provider/instantly"
	"bluereach_backend/internal/provider/smartlead"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/migrations"
	"bluereach_backend/platform/config"
	"bluereach_backend/platform/db"
	"bluereach_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Options select the optional parts of the stack.
type Options struct {
	// Migrate applies pending migrations before returning.
	Migrate bool
	// Archive connects MinIO for sync reports when it is configured.
	Archive bool
}

// Stack is the wired application core.
type Stack struct {
	Config *config.Config
	Log    *logger.Logger
	Pool   *pgxpool.Pool
	Bus    *events.InMemoryBus

	Leads     *leadsrepo.Repository
	Campaigns *campaignsrepo.Repo
	Runs      *runsrepo.Repository
	Interest  *provider.InterestMap
	Metrics   *prometheus.Registry

	Orchestrator *leadsync.Orchestrator
	// Reports is nil when MinIO is not configured.
	Reports storage.ReportStore

	closers []func()
}

// Open connects to the database and wires the orchestrator.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Stack, error) {
	s := &Stack{Config: cfg, Log: log}

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s.Pool = pool
	s.closers = append(s.closers, pool.Close)
	log.Info("database connection established")

	if opts.Migrate {
		if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool, migrations.FS, log)
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations complete")
	}

	interest, err := provider.LoadInterestMap()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Interest = interest

	s.Metrics = prometheus.NewRegistry()
	s.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s.Bus = events.NewInMemoryBus(log)
	s.Leads = leadsrepo.New(pool)
	s.Campaigns = campaignsrepo.New(pool)
	s.Runs = runsrepo.New(pool)

	if opts.Archive && cfg.IsMinIOEnabled() {
		reports, err := storage.NewMinIOService(cfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		bucket := cfg.GetMinioBucketSyncReports()
		if err := WithRetry(ctx, log, "ensure sync report bucket", 5, 2*time.Second, func() error {
			return reports.EnsureBucketExists(ctx, bucket)
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
		s.Reports = reports
		log.Info("sync report archive initialized", "bucket", bucket)
	}

	var archive leadsync.ReportArchive
	if s.Reports != nil {
		archive = s.Reports
	}
	recorder := leadsync.NewRecorder(s.Runs, archive, cfg.GetMinioBucketSyncReports(), log)
	recorder.RegisterHandlers(s.Bus)

	locker, err := s.locker()
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Orchestrator = leadsync.NewOrchestrator(
		leadsync.NewStore(s.Leads),
		s.Campaigns,
		newRegistry(cfg, interest, log),
		locker,
		s.Bus,
		leadsync.NewMetrics(s.Metrics),
		leadsync.SettingsFrom(cfg),
		log,
	)
	return s, nil
}

// Close waits for in-flight event handlers and releases connections.
func (s *Stack) Close() {
	if s == nil {
		return
	}
	if s.Bus != nil {
		s.Bus.Wait()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// locker uses Redis when configured so concurrent processes exclude each
// other, and an in-process lock otherwise.
func (s *Stack) locker() (leadsync.Locker, error) {
	if s.Config.GetRedisURL() == "" {
		s.Log.Warn("REDIS_URL not configured; campaign sync lock is process-local")
		return leadsync.NewLocalLocker(), nil
	}
	opt, err := redis.ParseURL(s.Config.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if s.Config.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	client := redis.NewClient(opt)
	s.closers = append(s.closers, func() { _ = client.Close() })
	return leadsync.NewRedisLocker(client), nil
}

func newRegistry(cfg config.ProviderConfig, interest *provider.InterestMap, log *logger.Logger) *provider.Registry {
	transport := func(name, baseURL string) *httpclient.Client {
		return httpclient.New(httpclient.Options{
			Name:              name,
			BaseURL:           baseURL,
			Timeout:           cfg.GetProviderTimeout(),
			RequestsPerSecond: cfg.GetProviderRequestsPerSecond(),
			HTTPClient:        &http.Client{Timeout: cfg.GetProviderTimeout()},
			Log:               log,
		})
	}
	return provider.NewRegistry(map[reconcile.Provider]provider.Source{
		reconcile.ProviderInstantly: instantly.New(transport("instantly", cfg.GetInstantlyBaseURL()), interest),
		reconcile.ProviderSmartlead: smartlead.New(transport("smartlead", cfg.GetSmartleadBaseURL()), interest),
	})
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
