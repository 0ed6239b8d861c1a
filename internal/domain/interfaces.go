package domain

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository interfaces
type ItemRepository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListActiveItems(ctx context.Context, filter ItemFilter) ([]*Item, error)
	// WithItemTx runs fn while holding the item's exclusive lock. Writes staged
	// through the ItemTx commit only if fn returns nil.
	WithItemTx(ctx context.Context, itemID string, fn func(tx ItemTx) error) error
}

// ItemTx is the per-item critical section handed out by WithItemTx.
type ItemTx interface {
	// Item returns the locked item as read at the start of the transaction.
	Item() *Item
	LeadingBid(ctx context.Context) (*Bid, error)
	AppendBid(ctx context.Context, bid *Bid) error
	// ApplyBid moves the item's current price and leader pointer to bid.
	ApplyBid(ctx context.Context, bid *Bid) error
	SetStatus(ctx context.Context, status ItemStatus) error
}

type BidRepository interface {
	// LeadingBid returns nil without error when the item has no bids.
	LeadingBid(ctx context.Context, itemID string) (*Bid, error)
	ListBidsForItem(ctx context.Context, itemID string) ([]*Bid, error)
	ListUserBids(ctx context.Context, userID string) ([]*UserBid, error)
}

type NotificationRepository interface {
	// CreateNotification returns false when a notification for the same
	// event and recipient already exists.
	CreateNotification(ctx context.Context, n *Notification) (bool, error)
	ListNotifications(ctx context.Context, userID string) ([]*Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForItem(ctx context.Context, itemID string) error
}

// Cache interfaces
type ItemStateCache interface {
	InitializeItem(ctx context.Context, item *Item) error
	// GetItemState returns nil without error on a cache miss.
	GetItemState(ctx context.Context, itemID string) (*ItemState, error)
	// RaisePrice stores price only if it is above the cached one.
	RaisePrice(ctx context.Context, itemID string, price decimal.Decimal, leaderID string) error
	SetStatus(ctx context.Context, itemID string, status ItemStatus) error
}

// Event interfaces
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

// Notification interfaces
type NotificationDispatcher interface {
	Enqueue(ctx context.Context, intents ...NotificationIntent)
}

// NotificationSink is told about each notification right after it is first
// persisted. Push must not block.
type NotificationSink interface {
	Push(ctx context.Context, n *Notification)
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type AuctionScheduler interface {
	ScheduleAuctionEnd(ctx context.Context, itemID string, endTime time.Time) error
	CancelSchedule(ctx context.Context, itemID string) error
	Start(ctx context.Context) error
	Stop() error
}
