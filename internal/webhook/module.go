package webhook

import (
	"bluereach_backend/internal/events"
	apphttp "bluereach_backend/internal/http"
	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/logger"
	"bluereach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, campaigns CampaignFinder, leads LeadWriter, interest *provider.InterestMap, eventBus events.Bus, metrics *Metrics, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(campaigns, leads, repo, eventBus, metrics, log)
	handler := NewHandler(service, interest, val)

	return &Module{
		handler: handler,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Provider deliveries (API key auth, no JWT)
	webhookGroup := ctx.V1.Group("/webhook")
	webhookGroup.POST("/instantly", APIKeyAuthMiddleware(m.repo, reconcile.ProviderInstantly), m.handler.HandleInstantly)
	webhookGroup.POST("/smartlead", APIKeyAuthMiddleware(m.repo, reconcile.ProviderSmartlead), m.handler.HandleSmartlead)

	// Admin API key management (JWT auth + admin role)
	adminGroup := ctx.Admin.Group("/clients/:id/webhook-keys")
	adminGroup.POST("", m.handler.HandleCreateAPIKey)
	adminGroup.GET("", m.handler.HandleListAPIKeys)
	adminGroup.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
