package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultRequestTimeout = 60 * time.Second

// Timeout bounds every request by the server timeout from config. A
// dispatch tick triggered over HTTP runs under the same budget.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
