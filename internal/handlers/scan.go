package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

type ExpiryScanner interface {
	Scan(ctx context.Context, now time.Time) (models.ScanReport, error)
	ScanUser(ctx context.Context, userID string, now time.Time) (models.ScanReport, error)
}

// ScanHandler exposes the expiry scan for direct triggering: the global pass
// behind the cron secret, and a per-user pass for the authenticated dashboard.
type ScanHandler struct {
	scanner ExpiryScanner
	log     *zap.Logger
	now     func() time.Time
}

func NewScanHandler(scanner ExpiryScanner, log *zap.Logger) *ScanHandler {
	return &ScanHandler{
		scanner: scanner,
		log:     log,
		now:     time.Now,
	}
}

func (h *ScanHandler) TriggerScan(c *gin.Context) {
	report, err := h.scanner.Scan(c.Request.Context(), h.now())
	if err != nil {
		// Internal detail stays in the log, not the response.
		h.log.Error("expiry scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "scan failed",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.ScanResponse{
		Success:             true,
		DocumentsChecked:    report.DocumentsChecked,
		NotificationsSent:   report.NotificationsSent,
		NotificationsFailed: report.NotificationsFailed,
		Timestamp:           h.now(),
	})
}

func (h *ScanHandler) TriggerUserScan(c *gin.Context) {
	userID := c.GetString("user_id")
	report, err := h.scanner.ScanUser(c.Request.Context(), userID, h.now())
	if err != nil {
		h.log.Error("user expiry scan failed",
			zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "scan failed",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.ScanResponse{
		Success:             true,
		DocumentsChecked:    report.DocumentsChecked,
		NotificationsSent:   report.NotificationsSent,
		NotificationsFailed: report.NotificationsFailed,
		Timestamp:           h.now(),
	})
}
