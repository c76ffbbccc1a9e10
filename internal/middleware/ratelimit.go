package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echogram/internal/ratelimit"
	"go.uber.org/zap"
)

// Allower is the part of ratelimit.Limiter the middleware needs.
type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error)
}

// PerMemberLimit throttles an authenticated route per member id. It must be
// mounted after AuthMiddleware. A limit of zero or less disables it.
//
// If Redis is unavailable the request is let through.
func PerMemberLimit(limiter Allower, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + strconv.FormatInt(GetUserID(c), 10)
		res, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		for k, v := range res.Headers() {
			c.Header(k, v)
		}
		if !res.Allowed {
			retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "rate_limited",
				"detail": "too many attempts, try again later",
			})
			return
		}
		c.Next()
	}
}
