package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
)

func TestToCents(t *testing.T) {
	tests := map[string]string{
		"100":    "10000",
		"12.5":   "1250",
		"0.01":   "1",
		"19.999": "2000",
	}
	for in, want := range tests {
		require.Equal(t, want, toCents(decimal.RequireFromString(in)), in)
	}
}

func TestStateCacheBreakerOpensWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewRedisStateCache(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cache.GetItemState(ctx, "item-1")
		require.Error(t, err)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	_, err := cache.GetItemState(ctx, "item-1")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.ErrorIs(t, cache.RaisePrice(ctx, "item-1", decimal.NewFromInt(5), "bob"), gobreaker.ErrOpenState)
	require.ErrorIs(t, cache.SetStatus(ctx, "item-1", domain.ItemEnded), gobreaker.ErrOpenState)
}

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent(`{"type":"bid_accepted","item_id":"item-1","user_id":"bob","amount":"12.5","timestamp":"2026-01-02T03:04:05Z"}`)
	require.NoError(t, err)
	require.Equal(t, domain.BidAccepted, event.Type)
	require.Equal(t, "item-1", event.ItemID)
	require.Equal(t, "bob", event.UserID)
	require.True(t, event.Amount.Equal(decimal.RequireFromString("12.5")))

	for _, payload := range []string{
		`not json`,
		`{"type":"bid_accepted"}`,
		`{"item_id":"item-1"}`,
	} {
		_, err := DecodeEvent(payload)
		require.Error(t, err, payload)
	}
}
