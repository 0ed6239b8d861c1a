package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

// EventHandler consumes one decoded event. Returned errors are logged and
// the subscription continues.
type EventHandler func(ctx context.Context, event *domain.BidEvent) error

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// Subscribe blocks, feeding events to handler until ctx is done.
func (r *RedisEventSubscriber) Subscribe(ctx context.Context, handler EventHandler) error {
	pubsub := r.client.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := pubsub.Channel()
	r.log.Info("Subscribed to auction events", "channel", EventsChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := DecodeEvent(msg.Payload)
			if err != nil {
				r.log.Warn("Failed to decode event", "payload", msg.Payload, "error", err)
				continue
			}
			if err := handler(ctx, event); err != nil {
				r.log.Error("Failed to handle event", "type", event.Type, "item_id", event.ItemID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func DecodeEvent(payload string) (*domain.BidEvent, error) {
	var event domain.BidEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	if event.ItemID == "" || event.Type == "" {
		return nil, fmt.Errorf("event missing item id or type")
	}
	return &event, nil
}
