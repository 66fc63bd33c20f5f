package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

// SubscriptionDirectory is the slice of the subscription store the reminder
// job needs: who has devices, their endpoints, and pruning.
type SubscriptionDirectory interface {
	UserIDs(ctx context.Context) ([]string, error)
	ByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	Delete(ctx context.Context, endpoint string) error
}

type BatchSender interface {
	SendBatch(ctx context.Context, subs []models.Subscription, payload models.NotificationPayload) models.BatchResult
}

// ReminderReport summarizes one daily-reminder broadcast.
type ReminderReport struct {
	UsersNotified       int `json:"usersNotified"`
	NotificationsSent   int `json:"notificationsSent"`
	NotificationsFailed int `json:"notificationsFailed"`
}

// Reminder nudges every subscribed user to log the day's trips and expenses.
// Runs at 18:00 and 21:00 per the hour table.
type Reminder struct {
	subscriptions SubscriptionDirectory
	dispatcher    BatchSender
	baseURL       string
	log           *zap.Logger
}

func NewReminder(subscriptions SubscriptionDirectory, dispatcher BatchSender, baseURL string, log *zap.Logger) *Reminder {
	return &Reminder{
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		baseURL:       baseURL,
		log:           log,
	}
}

func (r *Reminder) Run(ctx context.Context) (interface{}, error) {
	userIDs, err := r.subscriptions.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}

	payload := models.NewPayload(
		"Daily log reminder",
		"Don't forget to record today's trips, fuel and expenses.",
	)
	payload.Tag = "daily-reminder-" + time.Now().Format("2006-01-02")
	payload.Data = models.PayloadData{URL: r.baseURL + "/dashboard"}

	var report ReminderReport
	for _, userID := range userIDs {
		subs, err := r.subscriptions.ByUser(ctx, userID)
		if err != nil {
			r.log.Error("subscription lookup failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		if len(subs) == 0 {
			continue
		}

		res := r.dispatcher.SendBatch(ctx, subs, payload)
		report.NotificationsSent += res.Successful
		report.NotificationsFailed += res.Failed
		if res.Successful > 0 {
			report.UsersNotified++
		}
		for _, endpoint := range res.Expired {
			if err := r.subscriptions.Delete(ctx, endpoint); err != nil {
				r.log.Error("failed to prune expired subscription",
					zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	r.log.Info("daily reminder broadcast finished",
		zap.Int("users_notified", report.UsersNotified),
		zap.Int("sent", report.NotificationsSent),
		zap.Int("failed", report.NotificationsFailed))
	return report, nil
}
