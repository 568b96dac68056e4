// Package leads provides the canonical lead bounded context module.
// Leads are read and annotated here; provider data reaches them only through
// the sync orchestrator and the webhook receivers.
package leads

import (
	apphttp "bluereach_backend/internal/http"
	"bluereach_backend/internal/leads/handler"
	"bluereach_backend/internal/leads/repository"
	"bluereach_backend/internal/leads/service"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates the leads module on top of the shared lead repository.
func NewModule(repo *repository.Repository, campaigns service.CampaignLookup, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, campaigns, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the canonical lead store.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/campaigns/:id/leads", m.handler.ListByCampaign)

	leadsGroup := ctx.Protected.Group("/leads")
	leadsGroup.PATCH("/:id", m.handler.Update)
	leadsGroup.PATCH("/:id/status", m.handler.UpdateStatus)

	ctx.Admin.GET("/campaigns/:id/stats", m.handler.CampaignStats)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
