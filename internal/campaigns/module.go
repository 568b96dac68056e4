// Package campaigns provides the clients and campaigns bounded context module.
// Campaigns link a client to one provider-side campaign and carry the key used
// to read it.
package campaigns

import (
	"bluereach_backend/internal/campaigns/handler"
	"bluereach_backend/internal/campaigns/repository"
	"bluereach_backend/internal/campaigns/service"
	apphttp "bluereach_backend/internal/http"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the campaigns bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the campaigns module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "campaigns"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for the sync orchestrator and webhooks.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts client and campaign routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	clients := ctx.Admin.Group("/clients")
	clients.GET("", m.handler.ListClients)
	clients.POST("", m.handler.CreateClient)
	clients.GET("/:id/campaigns", m.handler.ListByClient)

	campaigns := ctx.Admin.Group("/campaigns")
	campaigns.POST("", m.handler.CreateCampaign)
	campaigns.GET("/:id", m.handler.GetCampaign)
	campaigns.PUT("/:id/api-key", m.handler.SetAPIKey)
	campaigns.DELETE("/:id", m.handler.DeleteCampaign)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
