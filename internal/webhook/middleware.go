package webhook

import (
	"net/http"

	"bluereach_backend/internal/reconcile"

	"github.com/gin-gonic/gin"
)

const (
	APIKeyHeader = "X-Webhook-API-Key"

	ctxClientID = "webhookClientID"
	ctxKeyID    = "webhookKeyID"
)

// APIKeyAuthMiddleware validates the X-Webhook-API-Key header and sets the
// client context on the gin context. A key only authenticates the provider
// it was issued for.
func APIKeyAuthMiddleware(keys KeyStore, provider reconcile.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := keys.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		if key.Provider != provider {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "API key not valid for this provider"})
			return
		}

		c.Set(ctxClientID, key.ClientID)
		c.Set(ctxKeyID, key.ID)
		c.Next()
	}
}
