package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/motorly/fleet-alerts/internal/models"
)

// SubscriptionStore handles push subscription persistence. The endpoint URL is
// the primary key; one user may own any number of rows.
type SubscriptionStore struct {
	db *sqlx.DB
}

func NewSubscriptionStore(db *sqlx.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Save upserts a subscription keyed on endpoint. Re-registering an endpoint
// (e.g. after a key rotation) overwrites the keys and owner.
func (s *SubscriptionStore) Save(ctx context.Context, sub models.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (endpoint, p256dh, auth, user_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (endpoint)
		 DO UPDATE SET p256dh = EXCLUDED.p256dh,
		               auth = EXCLUDED.auth,
		               user_id = EXCLUDED.user_id`,
		sub.Endpoint, sub.P256dh, sub.Auth, sub.UserID)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// ByUser returns all subscriptions owned by one user. A user with no
// subscriptions yields an empty slice, not an error.
func (s *SubscriptionStore) ByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.SelectContext(ctx, &subs,
		`SELECT endpoint, p256dh, auth, user_id, created_at
		 FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions for user %s: %w", userID, err)
	}
	return subs, nil
}

// UserIDs returns the distinct set of users holding at least one subscription.
// Used by broadcast sends and the daily reminder job.
func (s *SubscriptionStore) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT user_id FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("subscription user ids: %w", err)
	}
	return ids, nil
}

// Delete removes a subscription by endpoint. Deleting an endpoint that is
// already gone is a no-op: concurrent batch sends may prune overlapping sets.
func (s *SubscriptionStore) Delete(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// DeleteByUserEndpoint removes an endpoint only if the given user owns it.
// Returns ErrNotFound when no owned row matched, so the unsubscribe API can
// distinguish "not yours" from success.
func (s *SubscriptionStore) DeleteByUserEndpoint(ctx context.Context, userID, endpoint string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1 AND user_id = $2`,
		endpoint, userID)
	if err != nil {
		return fmt.Errorf("delete subscription for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription for user %s: %w", userID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
