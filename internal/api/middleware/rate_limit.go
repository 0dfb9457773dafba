package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/models"
)

// Limiter answers whether one more request fits in the window for key.
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware returns a middleware factory. A nil limiter turns
// every limit into a no-op.
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// RateLimit limits authenticated requests per user and endpoint.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		rm.check(c, fmt.Sprintf("rate_limit:%s:%s", userID, c.FullPath()), requests, window)
	}
}

// RateLimitIP limits public routes per client IP and endpoint.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rm.check(c, fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.FullPath()), requests, window)
	}
}

// WebSocketRateLimit limits handshakes per user.
func (rm *RateLimitMiddleware) WebSocketRateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		rm.check(c, fmt.Sprintf("rate_limit:websocket:%s", userID), requests, window)
	}
}

func (rm *RateLimitMiddleware) check(c *gin.Context, key string, requests int, window time.Duration) {
	if rm == nil || rm.limiter == nil {
		c.Next()
		return
	}

	allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "Rate limit check failed",
		})
		return
	}
	if !allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
			Code:    http.StatusTooManyRequests,
			Message: "Rate limit exceeded",
			Details: fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window),
		})
		return
	}

	c.Next()
}
