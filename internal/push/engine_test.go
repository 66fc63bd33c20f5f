package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/motorly/fleet-alerts/internal/config"
	"github.com/motorly/fleet-alerts/internal/models"
)

// testSubscription builds a subscription with a real P-256 key pair so the
// payload encryption step succeeds against a local test server.
func testSubscription(t *testing.T, endpoint string) models.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return models.Subscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
		UserID:   "user-1",
	}
}

func testEngine(t *testing.T, timeout time.Duration) *Engine {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewEngine(config.PushConfig{
		VAPIDPublicKey:  public,
		VAPIDPrivateKey: private,
		Subscriber:      "ops@example.com",
		TTL:             3600,
		Timeout:         timeout,
	}, zap.NewNop())
}

func TestDeliver_StatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   Outcome
	}{
		{"created is sent", http.StatusCreated, OutcomeSent},
		{"ok is sent", http.StatusOK, OutcomeSent},
		{"gone is expired", http.StatusGone, OutcomeExpired},
		{"not found is expired", http.StatusNotFound, OutcomeExpired},
		{"too many requests is failed", http.StatusTooManyRequests, OutcomeFailed},
		{"server error is failed", http.StatusInternalServerError, OutcomeFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			engine := testEngine(t, 5*time.Second)
			res := engine.Deliver(context.Background(),
				testSubscription(t, server.URL), models.NewPayload("title", "body"))

			assert.Equal(t, tc.want, res.Outcome)
		})
	}
}

func TestDeliver_UnreachableEndpointIsFailed(t *testing.T) {
	engine := testEngine(t, 2*time.Second)
	res := engine.Deliver(context.Background(),
		testSubscription(t, "http://127.0.0.1:1/push"), models.NewPayload("title", "body"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestDeliver_TimeoutIsFailedNotExpired(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer server.Close()
	defer close(done)

	engine := testEngine(t, 100*time.Millisecond)
	res := engine.Deliver(context.Background(),
		testSubscription(t, server.URL), models.NewPayload("title", "body"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestDeliver_BadKeysIsFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	engine := testEngine(t, 2*time.Second)
	sub := models.Subscription{Endpoint: server.URL, P256dh: "not-a-key", Auth: "nope"}
	res := engine.Deliver(context.Background(), sub, models.NewPayload("title", "body"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestDeliver_FillsPayloadDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	engine := testEngine(t, 5*time.Second)
	payload := models.NotificationPayload{Title: "title", Body: "body"}
	res := engine.Deliver(context.Background(), testSubscription(t, server.URL), payload)

	assert.Equal(t, OutcomeSent, res.Outcome)
}
