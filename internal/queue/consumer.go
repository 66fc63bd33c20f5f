package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

type SubscriptionDirectory interface {
	UserIDs(ctx context.Context) ([]string, error)
	ByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	Delete(ctx context.Context, endpoint string) error
}

type BatchSender interface {
	SendBatch(ctx context.Context, subs []models.Subscription, payload models.NotificationPayload) models.BatchResult
}

// PushWorker turns a queued ad-hoc push request into deliveries: resolve the
// target subscriptions (one user or everyone), fan out, prune gone endpoints.
type PushWorker struct {
	subscriptions SubscriptionDirectory
	dispatcher    BatchSender
	log           *zap.Logger
}

func NewPushWorker(subscriptions SubscriptionDirectory, dispatcher BatchSender, log *zap.Logger) *PushWorker {
	return &PushWorker{
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		log:           log,
	}
}

func (w *PushWorker) Handle(ctx context.Context, msg models.PushMessage) error {
	payload := models.NewPayload(msg.Title, msg.Body)
	payload.Tag = "adhoc-" + msg.ID
	payload.Data = models.PayloadData{URL: msg.URL, UserID: msg.UserID}

	var targets []string
	if msg.Broadcast {
		userIDs, err := w.subscriptions.UserIDs(ctx)
		if err != nil {
			return fmt.Errorf("list subscribed users: %w", err)
		}
		targets = userIDs
	} else {
		targets = []string{msg.UserID}
	}

	var sent, failed int
	for _, userID := range targets {
		subs, err := w.subscriptions.ByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("subscriptions for user %s: %w", userID, err)
		}
		if len(subs) == 0 {
			continue
		}
		res := w.dispatcher.SendBatch(ctx, subs, payload)
		sent += res.Successful
		failed += res.Failed
		for _, endpoint := range res.Expired {
			if err := w.subscriptions.Delete(ctx, endpoint); err != nil {
				w.log.Error("failed to prune expired subscription",
					zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	w.log.Info("ad-hoc push processed",
		zap.String("id", msg.ID),
		zap.Bool("broadcast", msg.Broadcast),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
	return nil
}
