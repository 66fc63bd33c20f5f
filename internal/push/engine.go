// Package push implements web-push delivery: a single-endpoint engine that
// classifies outcomes and a batch dispatcher that fans out across a
// recipient's endpoints.
package push

import (
	"context"
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/config"
	"github.com/motorly/fleet-alerts/internal/models"
	"github.com/motorly/fleet-alerts/pkg/circuitbreaker"
)

// Outcome is the three-way classification of one delivery attempt.
type Outcome int

const (
	// OutcomeSent: the push service accepted the message.
	OutcomeSent Outcome = iota
	// OutcomeExpired: the push service reported the endpoint permanently
	// gone (404/410). The subscription should be deleted by the caller.
	OutcomeExpired
	// OutcomeFailed: any other failure (network, timeout, rate limiting,
	// bad payload). Not grounds for deleting the subscription.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeExpired:
		return "expired"
	default:
		return "failed"
	}
}

// Result tags one delivery attempt with its endpoint and classification.
type Result struct {
	Endpoint string
	Outcome  Outcome
	Err      error
}

// Deliverer sends one payload to one endpoint. Implementations never return
// an error past this boundary; every attempt resolves to a Result.
type Deliverer interface {
	Deliver(ctx context.Context, sub models.Subscription, payload models.NotificationPayload) Result
}

// Engine delivers via the Web Push protocol with VAPID auth. The transport
// sits behind a circuit breaker so a misbehaving push service fails fast
// instead of stalling every scan pass.
type Engine struct {
	cfg    config.PushConfig
	client *http.Client
	cb     *gobreaker.CircuitBreaker
	log    *zap.Logger
}

func NewEngine(cfg config.PushConfig, log *zap.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cb:  circuitbreaker.NewCircuitBreaker("web-push"),
		log: log,
	}
}

func (e *Engine) Deliver(ctx context.Context, sub models.Subscription, payload models.NotificationPayload) Result {
	if payload.Icon == "" {
		payload.Icon = models.DefaultIcon
	}
	if payload.Badge == "" {
		payload.Badge = models.DefaultBadge
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Endpoint: sub.Endpoint, Outcome: OutcomeFailed, Err: err}
	}

	status, err := e.send(ctx, sub, body)
	if err != nil {
		// Transport error, timeout, or open breaker. A timeout is never
		// an expiry signal: only the push service can declare an
		// endpoint gone.
		e.log.Warn("push delivery failed",
			zap.String("endpoint", truncate(sub.Endpoint)),
			zap.Error(err))
		return Result{Endpoint: sub.Endpoint, Outcome: OutcomeFailed, Err: err}
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		e.log.Info("push endpoint gone",
			zap.String("endpoint", truncate(sub.Endpoint)),
			zap.Int("status", status))
		return Result{Endpoint: sub.Endpoint, Outcome: OutcomeExpired}
	case status >= 200 && status < 300:
		return Result{Endpoint: sub.Endpoint, Outcome: OutcomeSent}
	default:
		e.log.Warn("push service rejected delivery",
			zap.String("endpoint", truncate(sub.Endpoint)),
			zap.Int("status", status))
		return Result{Endpoint: sub.Endpoint, Outcome: OutcomeFailed}
	}
}

// send performs the webpush call inside the breaker and returns the push
// service's status code. A gone endpoint is a valid answer about one
// subscription, not a service fault, so it does not trip the breaker.
func (e *Engine) send(ctx context.Context, sub models.Subscription, body []byte) (int, error) {
	status, err := e.cb.Execute(func() (interface{}, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			HTTPClient:      e.client,
			Subscriber:      e.cfg.Subscriber,
			VAPIDPublicKey:  e.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: e.cfg.VAPIDPrivateKey,
			TTL:             e.cfg.TTL,
		})
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		return resp.StatusCode, nil
	})
	if err != nil {
		return 0, err
	}
	return status.(int), nil
}

func truncate(endpoint string) string {
	if len(endpoint) > 50 {
		return endpoint[:50]
	}
	return endpoint
}
