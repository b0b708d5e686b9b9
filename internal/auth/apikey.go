package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// apiKeyCtxKey is the Gin context key used to store the authenticated API key.
const apiKeyCtxKey = "api_key"

// APIKeyMiddleware rejects requests whose header does not carry one of keys.
// In production the key list would typically come from a secret manager.
func APIKeyMiddleware(header string, keys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(header))
		if _, ok := allowed[apiKey]; !ok || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "authentication_error",
				Message: "Invalid or missing API key",
			})
			return
		}
		c.Set(apiKeyCtxKey, apiKey)
		c.Next()
	}
}

// ClientKey identifies the caller: the authenticated API key, else the client address.
func ClientKey(c *gin.Context) string {
	if v, ok := c.Get(apiKeyCtxKey); ok {
		if s, _ := v.(string); s != "" {
			return "key:" + s
		}
	}
	return "ip:" + c.ClientIP()
}
