package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/usecase"
)

// RateLimit caps requests per client IP per time bucket using the ledger's
// increment-with-expiry. Fail-open: if the ledger backend is unreachable the
// request goes through.
func RateLimit(ledger usecase.Ledger, limit int64, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *gin.Context) {
		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("rl:%s:%d", c.ClientIP(), bucket)

		n, err := ledger.IncrWithExpiry(c.Request.Context(), key, window)
		if err != nil {
			logging.From(c).Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}
		if n > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
			return
		}
		c.Next()
	}
}
