package handler

import (
	"context"

	"bluereach_backend/internal/adapters/storage"
	apphttp "bluereach_backend/internal/http"
	"bluereach_backend/internal/leadsync"
	"bluereach_backend/platform/validator"
)

// Module mounts the sync routes. It implements http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the sync module. enqueuer and reports may be nil; async
// triggers then fail with 422 and runs carry no report link.
func NewModule(runner Runner, runs RunReader, enqueuer leadsync.Enqueuer, reports storage.ReportStore, bucket string, val *validator.Validator) *Module {
	var linker ReportLinker
	if reports != nil {
		linker = presigner{store: reports, bucket: bucket}
	}
	return &Module{handler: New(runner, runs, enqueuer, linker, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leadsync"
}

// RegisterRoutes mounts sync triggers and run history on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	triggers := ctx.Admin.Group("")
	if ctx.SyncRateLimiter != nil {
		triggers.Use(ctx.SyncRateLimiter.RateLimit())
	}
	triggers.POST("/campaigns/:id/sync", m.handler.SyncCampaign)
	triggers.POST("/campaigns/:id/positive-resync", m.handler.ResyncCampaignPositive)
	triggers.POST("/campaigns/:id/reply-backfill", m.handler.BackfillReplies)
	triggers.POST("/clients/:id/sync", m.handler.SyncClient)
	triggers.POST("/clients/:id/positive-resync", m.handler.ResyncClientPositive)

	runs := ctx.Admin.Group("/sync-runs")
	runs.GET("", m.handler.ListRuns)
	runs.GET("/:id", m.handler.GetRun)
}

type presigner struct {
	store  storage.ReportStore
	bucket string
}

func (p presigner) DownloadURL(ctx context.Context, key string) (string, error) {
	url, err := p.store.GenerateDownloadURL(ctx, p.bucket, key)
	if err != nil {
		return "", err
	}
	return url.URL, nil
}

var _ apphttp.Module = (*Module)(nil)
var _ Runner = (*leadsync.Orchestrator)(nil)
