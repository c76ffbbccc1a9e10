package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// ConnCounter reports live chat connections.
type ConnCounter interface {
	Count() int
}

type HealthHandler struct {
	checks map[string]HealthCheck
	conns  ConnCounter
	logger *zap.Logger
	now    func() time.Time
}

func NewHealthHandler(checks map[string]HealthCheck, conns ConnCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, conns: conns, logger: logger, now: time.Now}
}

// Ping handles GET /
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ping": "pong"})
}

// Now handles GET /now
func (h *HealthHandler) Now(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"now": h.now().UTC().Format(time.RFC3339)})
}

// Health handles GET /v1/health
//
// Public so load balancers can probe it. Any failing dependency turns the
// response into a 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{
		"status":       "ok",
		"dependencies": deps,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if h.conns != nil {
		body["chat_connections"] = h.conns.Count()
	}
	c.JSON(status, body)
}
