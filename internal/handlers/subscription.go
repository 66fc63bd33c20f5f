package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
	"github.com/motorly/fleet-alerts/internal/store"
)

type SubscriptionWriter interface {
	Save(ctx context.Context, sub models.Subscription) error
	DeleteByUserEndpoint(ctx context.Context, userID, endpoint string) error
}

// SubscriptionHandler registers and removes push endpoints for the
// authenticated user. The endpoint URL is the identity: re-registering
// upserts, so browsers can rotate keys freely.
type SubscriptionHandler struct {
	subscriptions  SubscriptionWriter
	vapidPublicKey string
	log            *zap.Logger
}

func NewSubscriptionHandler(subscriptions SubscriptionWriter, vapidPublicKey string, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions:  subscriptions,
		vapidPublicKey: vapidPublicKey,
		log:            log,
	}
}

func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	userID := c.GetString("user_id")
	sub := models.Subscription{
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
		UserID:   userID,
	}
	if err := h.subscriptions.Save(c.Request.Context(), sub); err != nil {
		h.log.Error("failed to save subscription",
			zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to save subscription",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Message: "Subscription registered",
	})
}

func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	var req models.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}

	userID := c.GetString("user_id")
	err := h.subscriptions.DeleteByUserEndpoint(c.Request.Context(), userID, req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Success: false,
			Error:   "subscription not found",
			Message: "Not Found",
		})
		return
	}
	if err != nil {
		h.log.Error("failed to delete subscription",
			zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to delete subscription",
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Subscription removed",
	})
}

// VapidKey hands the public key to clients so they can call
// pushManager.subscribe.
func (h *SubscriptionHandler) VapidKey(c *gin.Context) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "OK",
		Data:    gin.H{"public_key": h.vapidPublicKey},
	})
}
