package push

import (
	"context"

	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/models"
)

// BatchDispatcher fans one payload out across a recipient's endpoints
// concurrently and reduces the settled results into counts. It never touches
// the subscription store: expired endpoints are reported back to the caller
// for deletion.
type BatchDispatcher struct {
	engine Deliverer
	log    *zap.Logger
}

func NewBatchDispatcher(engine Deliverer, log *zap.Logger) *BatchDispatcher {
	return &BatchDispatcher{engine: engine, log: log}
}

// SendBatch issues one delivery per subscription without waiting between
// endpoints; ordering is irrelevant. An empty subscription list returns the
// zero result with no network calls.
func (d *BatchDispatcher) SendBatch(ctx context.Context, subs []models.Subscription, payload models.NotificationPayload) models.BatchResult {
	if len(subs) == 0 {
		return models.BatchResult{}
	}

	results := make(chan Result, len(subs))
	for _, sub := range subs {
		go func(sub models.Subscription) {
			results <- d.engine.Deliver(ctx, sub, payload)
		}(sub)
	}

	var agg models.BatchResult
	for range subs {
		res := <-results
		switch res.Outcome {
		case OutcomeSent:
			agg.Successful++
		case OutcomeExpired:
			agg.Expired = append(agg.Expired, res.Endpoint)
		case OutcomeFailed:
			agg.Failed++
		}
	}

	if agg.Failed > 0 || len(agg.Expired) > 0 {
		d.log.Info("batch delivery completed with failures",
			zap.String("tag", payload.Tag),
			zap.Int("successful", agg.Successful),
			zap.Int("failed", agg.Failed),
			zap.Int("expired", len(agg.Expired)))
	}
	return agg
}
