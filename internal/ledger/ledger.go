// Package ledger guards against duplicate expiry notifications when a scan
// runs more than once on the same calendar day (manual re-triggering, an
// over-eager scheduler). The threshold-equality policy already limits each
// document to one matching day per threshold; the ledger closes the
// same-day-re-run gap.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyTTL = 48 * time.Hour

// SentLedger records one delivery per document per calendar day in redis.
type SentLedger struct {
	redis *redis.Client
}

func NewSentLedger(client *redis.Client) *SentLedger {
	return &SentLedger{redis: client}
}

// MarkIfFirst atomically claims today's send for a document. It returns true
// when this call is the first for (document, day); false means a notification
// already went out today and the caller should skip delivery.
func (l *SentLedger) MarkIfFirst(ctx context.Context, documentID string, now time.Time) (bool, error) {
	key := fmt.Sprintf("ledger:document-expiry:%s:%s", documentID, now.Format("2006-01-02"))
	first, err := l.redis.SetNX(ctx, key, "sent", keyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("ledger mark %s: %w", key, err)
	}
	return first, nil
}
