package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

type PushPublisher interface {
	PublishPush(ctx context.Context, message models.PushMessage) error
}

// NotificationHandler accepts ad-hoc push requests (single user or broadcast)
// and queues them for the delivery worker.
type NotificationHandler struct {
	publisher PushPublisher
	redis     *redis.Client
	log       *zap.Logger
}

func NewNotificationHandler(publisher PushPublisher, redisClient *redis.Client, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		publisher: publisher,
		redis:     redisClient,
		log:       log,
	}
}

func (n *NotificationHandler) SendPush(c *gin.Context) {
	ctx := c.Request.Context()
	correlationID := c.GetString("correlation_id")
	now := time.Now()

	var req models.SendPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   err.Error(),
			Message: "Invalid Request Body",
		})
		return
	}
	if req.Broadcast == (req.UserID != "") {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "exactly one of user_id or broadcast must be set",
			Message: "Invalid Request Body",
		})
		return
	}

	notificationID := uuid.New().String()

	// Optional client-side replay protection, keyed on the caller's token.
	if key := c.GetHeader("X-Idempotency-Key"); key != "" {
		isDuplicate, err := n.checkIdempotency(ctx, key)
		if err != nil {
			n.log.Warn("idempotency check failed", zap.Error(err))
		}
		if isDuplicate {
			c.JSON(http.StatusOK, models.APIResponse{
				Success: true,
				Message: "Notification Already Processed",
				Data: models.NotificationResponse{
					NotificationID: notificationID,
					Status:         "processing",
					QueuedAt:       now,
				},
			})
			return
		}
	}

	message := models.PushMessage{
		ID:            notificationID,
		UserID:        req.UserID,
		Broadcast:     req.Broadcast,
		Title:         req.Title,
		Body:          req.Body,
		URL:           req.URL,
		Timestamp:     now,
		CorrelationID: correlationID,
	}
	if err := n.publisher.PublishPush(ctx, message); err != nil {
		n.log.Error("failed to publish push notification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Error:   "failed to queue push notification",
			Message: "Internal Server Error",
		})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Push notification queued successfully",
		Data: models.NotificationResponse{
			NotificationID: notificationID,
			Status:         "queued",
			QueuedAt:       time.Now(),
		},
	})
}

func (n *NotificationHandler) checkIdempotency(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("notification:idempotency:%s", key)
	first, err := n.redis.SetNX(ctx, redisKey, "processing", 24*time.Hour).Result()
	if err != nil {
		return false, err
	}
	return !first, nil
}
