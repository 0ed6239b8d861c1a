package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"silent-auction/internal/domain"
)

// stateRetention keeps a closed item's state around after its deadline so
// late bids are still rejected from cache.
const stateRetention = 24 * time.Hour

// raisePriceScript stores the new price only when it is strictly above the
// cached one. A missing key is left missing.
const raisePriceScript = `
    local current = redis.call('HGET', KEYS[1], 'price_cents')
    if current == false then
        return 0
    end
    if tonumber(ARGV[1]) > tonumber(current) then
        redis.call('HSET', KEYS[1], 'price_cents', ARGV[1], 'leader', ARGV[2])
        return 1
    end
    return 0
`

const setStatusScript = `
    if redis.call('EXISTS', KEYS[1]) == 1 then
        return redis.call('HSET', KEYS[1], 'status', ARGV[1])
    end
    return 0
`

// RedisStateCache mirrors each item's committed price, leader and status in a
// hash at item:<id>. The database stays authoritative; the cache only allows
// early rejection.
type RedisStateCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "redis-state-cache",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func itemKey(itemID string) string {
	return fmt.Sprintf("item:%s", itemID)
}

func toCents(price decimal.Decimal) string {
	return strconv.FormatInt(price.Shift(2).Round(0).IntPart(), 10)
}

func (r *RedisStateCache) execute(fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (r *RedisStateCache) InitializeItem(ctx context.Context, item *domain.Item) error {
	key := itemKey(item.ID)
	return r.execute(func() error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"price_cents", toCents(item.CurrentPrice),
				"leader", "",
				"status", int(item.Status),
			)
			pipe.ExpireAt(ctx, key, item.Deadline.Add(stateRetention))
			return nil
		})
		return err
	})
}

func (r *RedisStateCache) GetItemState(ctx context.Context, itemID string) (*domain.ItemState, error) {
	var fields map[string]string
	err := r.execute(func() error {
		var err error
		fields, err = r.client.HGetAll(ctx, itemKey(itemID)).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	cents, err := strconv.ParseInt(fields["price_cents"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached price for %s: %w", itemID, err)
	}
	status, err := strconv.Atoi(fields["status"])
	if err != nil {
		return nil, fmt.Errorf("parse cached status for %s: %w", itemID, err)
	}

	return &domain.ItemState{
		ItemID:       itemID,
		CurrentPrice: decimal.New(cents, -2),
		LeaderID:     fields["leader"],
		Status:       domain.ItemStatus(status),
	}, nil
}

func (r *RedisStateCache) RaisePrice(ctx context.Context, itemID string, price decimal.Decimal, leaderID string) error {
	return r.execute(func() error {
		return r.client.Eval(ctx, raisePriceScript, []string{itemKey(itemID)},
			toCents(price), leaderID).Err()
	})
}

func (r *RedisStateCache) SetStatus(ctx context.Context, itemID string, status domain.ItemStatus) error {
	return r.execute(func() error {
		return r.client.Eval(ctx, setStatusScript, []string{itemKey(itemID)}, int(status)).Err()
	})
}
