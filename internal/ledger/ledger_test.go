package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T) *SentLedger {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return NewSentLedger(redis.NewClient(&redis.Options{Addr: s.Addr()}))
}

func TestMarkIfFirst(t *testing.T) {
	l := setupLedger(t)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	first, err := l.MarkIfFirst(context.Background(), "doc-1", now)
	assert.NoError(t, err)
	assert.True(t, first)

	// Second claim on the same day loses.
	first, err = l.MarkIfFirst(context.Background(), "doc-1", now)
	assert.NoError(t, err)
	assert.False(t, first)

	// A different document on the same day is independent.
	first, err = l.MarkIfFirst(context.Background(), "doc-2", now)
	assert.NoError(t, err)
	assert.True(t, first)

	// The next calendar day starts fresh.
	first, err = l.MarkIfFirst(context.Background(), "doc-1", now.Add(24*time.Hour))
	assert.NoError(t, err)
	assert.True(t, first)
}

func TestMarkIfFirst_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	l := NewSentLedger(client)

	_, err := l.MarkIfFirst(context.Background(), "doc-1", time.Now())
	assert.Error(t, err)
}
