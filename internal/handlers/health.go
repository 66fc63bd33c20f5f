package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type QueueChecker interface {
	IsConnected() bool
}

type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
	queue QueueChecker
}

func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, queue QueueChecker) *HealthHandler {
	return &HealthHandler{
		db:    db,
		redis: redisClient,
		queue: queue,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)

	if err := h.db.PingContext(ctx); err == nil {
		checks["postgres"] = "healthy"
	} else {
		checks["postgres"] = "unhealthy"
	}

	if err := h.redis.Ping(ctx).Err(); err == nil {
		checks["redis"] = "healthy"
	} else {
		// The scan degrades without the ledger but still runs.
		checks["redis"] = "degraded"
	}

	if h.queue.IsConnected() {
		checks["rabbitmq"] = "healthy"
	} else {
		checks["rabbitmq"] = "unhealthy"
	}

	overallStatus := "healthy"
	for _, status := range checks {
		if status == "unhealthy" {
			overallStatus = "unhealthy"
			break
		} else if status == "degraded" {
			overallStatus = "degraded"
		}
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    overallStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"version":   "1.0.0",
	})
}
