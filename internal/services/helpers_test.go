package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
	"silent-auction/internal/infrastructure/memory"
	"silent-auction/pkg/logger"
)

// recordingDispatcher captures enqueued intents instead of persisting them.
type recordingDispatcher struct {
	mu      sync.Mutex
	intents []domain.NotificationIntent
}

func (d *recordingDispatcher) Enqueue(_ context.Context, intents ...domain.NotificationIntent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
}

func (d *recordingDispatcher) recorded() []domain.NotificationIntent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.NotificationIntent(nil), d.intents...)
}

type testEnv struct {
	store      *memory.Store
	dispatcher *Dispatcher
	bids       *BidService
	auctions   *AuctionManager
}

// newTestEnv wires the services over an in-memory store. The dispatcher is
// never started, so every notification is written before Enqueue returns.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	dispatcher := NewDispatcher(store, DispatcherOptions{MaxAttempts: 3, InitialInterval: time.Millisecond}, log)

	return &testEnv{
		store:      store,
		dispatcher: dispatcher,
		bids:       NewBidService(store, store, NopStateCache{}, NopEventPublisher{}, dispatcher, log),
		auctions:   NewAuctionManager(store, NopStateCache{}, NopEventPublisher{}, dispatcher, log),
	}
}

func seedItem(t *testing.T, store *memory.Store, id, seller string, price int64) *domain.Item {
	t.Helper()
	now := time.Now().UTC()
	item := &domain.Item{
		ID:            id,
		SellerID:      seller,
		Title:         "Item " + id,
		Category:      domain.CategoryArt,
		StartingPrice: decimal.NewFromInt(price),
		CurrentPrice:  decimal.NewFromInt(price),
		Deadline:      now.Add(time.Hour),
		Status:        domain.ItemActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateItem(context.Background(), item))
	return item
}

func notificationTypes(t *testing.T, store *memory.Store, userID string) []domain.NotificationType {
	t.Helper()
	list, err := store.ListNotifications(context.Background(), userID)
	require.NoError(t, err)
	types := make([]domain.NotificationType, 0, len(list))
	for _, n := range list {
		types = append(types, n.Type)
	}
	return types
}
