package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/motorly/fleet-alerts/internal/models"
)

// DocumentStore reads vehicle documents for expiry scanning. The dashboard
// owns writes to these tables; this service only queries them.
type DocumentStore struct {
	db *sqlx.DB
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const expiringQuery = `
	SELECT d.id, d.vehicle_id, v.user_id, d.type, d.expiry_date, d.is_active
	FROM vehicle_documents d
	JOIN vehicles v ON v.id = d.vehicle_id
	WHERE d.is_active = true
	  AND d.expiry_date IS NOT NULL
	  AND d.expiry_date >= $1
	  AND d.expiry_date <= $2`

// ExpiringWithin returns active documents whose expiry falls inside
// [now, now+horizon]. Already-expired documents are outside the window.
func (s *DocumentStore) ExpiringWithin(ctx context.Context, now time.Time, horizon time.Duration) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.SelectContext(ctx, &docs, expiringQuery, now, now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("expiring documents: %w", err)
	}
	return docs, nil
}

// ExpiringWithinForUser is the per-user variant used by the scoped scan.
func (s *DocumentStore) ExpiringWithinForUser(ctx context.Context, userID string, now time.Time, horizon time.Duration) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.SelectContext(ctx, &docs, expiringQuery+` AND v.user_id = $3`,
		now, now.Add(horizon), userID)
	if err != nil {
		return nil, fmt.Errorf("expiring documents for user %s: %w", userID, err)
	}
	return docs, nil
}
