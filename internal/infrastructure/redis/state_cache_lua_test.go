package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
)

func newMiniredisCache(t *testing.T) (*miniredis.Miniredis, *RedisStateCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStateCache(client)
}

func TestRaisePriceNeverLowersCachedPrice(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	ctx := context.Background()

	item := &domain.Item{
		ID:           "item-1",
		CurrentPrice: decimal.NewFromInt(100),
		Status:       domain.ItemActive,
		Deadline:     time.Now().Add(time.Hour),
	}
	require.NoError(t, cache.InitializeItem(ctx, item))
	require.Greater(t, mr.TTL("item:item-1"), time.Duration(0))

	steps := []struct {
		price      string
		leader     string
		wantPrice  string
		wantLeader string
	}{
		{price: "120", leader: "bob", wantPrice: "120", wantLeader: "bob"},
		{price: "110", leader: "carol", wantPrice: "120", wantLeader: "bob"},
		{price: "120", leader: "carol", wantPrice: "120", wantLeader: "bob"},
		{price: "120.01", leader: "carol", wantPrice: "120.01", wantLeader: "carol"},
	}
	for _, step := range steps {
		require.NoError(t, cache.RaisePrice(ctx, "item-1", decimal.RequireFromString(step.price), step.leader))

		state, err := cache.GetItemState(ctx, "item-1")
		require.NoError(t, err)
		require.True(t, state.CurrentPrice.Equal(decimal.RequireFromString(step.wantPrice)),
			"after %s got %s", step.price, state.CurrentPrice)
		require.Equal(t, step.wantLeader, state.LeaderID)
		require.Equal(t, domain.ItemActive, state.Status)
	}
}

func TestScriptsLeaveMissingKeysMissing(t *testing.T) {
	mr, cache := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.RaisePrice(ctx, "ghost", decimal.NewFromInt(50), "bob"))
	require.NoError(t, cache.SetStatus(ctx, "ghost", domain.ItemEnded))
	require.False(t, mr.Exists("item:ghost"))

	state, err := cache.GetItemState(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestSetStatusUpdatesCachedItem(t *testing.T) {
	_, cache := newMiniredisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.InitializeItem(ctx, &domain.Item{
		ID:           "item-1",
		CurrentPrice: decimal.NewFromInt(10),
		Status:       domain.ItemActive,
		Deadline:     time.Now().Add(time.Hour),
	}))
	require.NoError(t, cache.SetStatus(ctx, "item-1", domain.ItemEnded))

	state, err := cache.GetItemState(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, domain.ItemEnded, state.Status)
	require.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(10)))
}
