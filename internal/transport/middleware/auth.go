package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DispatchAuth guards the trigger endpoints with the shared secret. The
// caller supplies it either as "Authorization: Bearer <secret>" or as a
// ?token= query parameter (for cron services that cannot set headers).
// Requests are rejected before any storage access.
func DispatchAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				gin.H{"error": "dispatch secret is not configured"})
			return
		}

		supplied := c.Query("token")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			supplied = strings.TrimPrefix(header, "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "invalid or missing dispatch secret"})
			return
		}

		c.Next()
	}
}
