package webhook

import (
	"net/http"
	"time"

	"bluereach_backend/internal/provider"
	"bluereach_backend/internal/reconcile"
	"bluereach_backend/platform/httpkit"
	"bluereach_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errNoClientContext = "no client context"
	errInvalidRequest  = "invalid request body"
	errValidation      = "validation error"
	errInvalidClientID = "invalid client ID"
	errInvalidKeyID    = "invalid key ID"
)

// Handler handles webhook HTTP requests.
type Handler struct {
	service  *Service
	interest *provider.InterestMap
	val      *validator.Validator
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, interest *provider.InterestMap, val *validator.Validator) *Handler {
	return &Handler{service: service, interest: interest, val: val}
}

// ---- Provider deliveries (API-key authenticated) ----

// HandleInstantly processes an Instantly webhook delivery.
// POST /api/v1/webhook/instantly
func (h *Handler) HandleInstantly(c *gin.Context) {
	clientID, ok := h.getWebhookClientID(c)
	if !ok {
		return
	}
	var payload InstantlyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	result, err := h.service.ProcessEvent(c.Request.Context(), clientID, reconcile.ProviderInstantly, payload.Event())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// HandleSmartlead processes a Smartlead webhook delivery.
// POST /api/v1/webhook/smartlead
func (h *Handler) HandleSmartlead(c *gin.Context) {
	clientID, ok := h.getWebhookClientID(c)
	if !ok {
		return
	}
	var payload SmartleadPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	result, err := h.service.ProcessEvent(c.Request.Context(), clientID, reconcile.ProviderSmartlead, payload.Event(h.interest))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ---- Admin API Key Management (JWT authenticated) ----

// CreateAPIKeyRequest is the request body for creating a new API key.
type CreateAPIKeyRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Provider string `json:"provider" validate:"required,oneof=instantly smartlead"`
}

// APIKeyResponse is returned when listing or creating API keys.
type APIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"clientId"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt string    `json:"createdAt"`
}

// CreateAPIKeyResponse includes the plaintext key (shown only once).
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"` // plaintext, shown only once
}

// HandleCreateAPIKey creates a new webhook API key.
// POST /api/v1/admin/clients/:id/webhook-keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	clientID, ok := parseClientID(c)
	if !ok {
		return
	}
	var req CreateAPIKeyRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	resp, err := h.service.CreateKey(c.Request.Context(), clientID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleListAPIKeys lists all webhook API keys for a client.
// GET /api/v1/admin/clients/:id/webhook-keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	clientID, ok := parseClientID(c)
	if !ok {
		return
	}

	keys, err := h.service.ListKeys(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, keys)
}

// HandleRevokeAPIKey deactivates a webhook API key.
// DELETE /api/v1/admin/clients/:id/webhook-keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	clientID, ok := parseClientID(c)
	if !ok {
		return
	}
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidKeyID, nil)
		return
	}

	if httpkit.HandleError(c, h.service.RevokeKey(c.Request.Context(), clientID, keyID)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

func toAPIKeyResponse(key APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        key.ID,
		ClientID:  key.ClientID,
		Provider:  string(key.Provider),
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ---- Helpers ----

func (h *Handler) getWebhookClientID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(ctxClientID)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, errNoClientContext, nil)
		return uuid.UUID{}, false
	}
	clientID, ok := raw.(uuid.UUID)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, errNoClientContext, nil)
		return uuid.UUID{}, false
	}
	return clientID, true
}

func parseClientID(c *gin.Context) (uuid.UUID, bool) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidClientID, nil)
		return uuid.UUID{}, false
	}
	return clientID, true
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.Describe(err))
		return false
	}
	return true
}
