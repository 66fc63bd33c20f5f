package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, now time.Time) models.DispatchReport
}

// CronHandler is the master scheduler's trigger surface. An external cron
// hits it hourly; everything else is derived from the wall clock.
type CronHandler struct {
	dispatcher Dispatcher
	log        *zap.Logger
	now        func() time.Time
}

func NewCronHandler(dispatcher Dispatcher, log *zap.Logger) *CronHandler {
	return &CronHandler{
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

func (h *CronHandler) Dispatch(c *gin.Context) {
	report := h.dispatcher.Dispatch(c.Request.Context(), h.now())
	h.log.Info("cron dispatch finished",
		zap.Int("hour", report.Hour),
		zap.Int("jobs_executed", report.JobsExecuted),
		zap.Bool("success", report.Success))
	c.JSON(http.StatusOK, report)
}
