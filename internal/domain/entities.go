package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      Category        `json:"category"`
	ImageURL      string          `json:"image_url,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	LeadingBidID  string          `json:"leading_bid_id,omitempty"`
	Deadline      time.Time       `json:"deadline"`
	Status        ItemStatus      `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ItemStatus int

const (
	ItemActive ItemStatus = iota
	ItemEnded
	ItemCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemActive:
		return "active"
	case ItemEnded:
		return "ended"
	case ItemCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s ItemStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ItemStatus) UnmarshalText(text []byte) error {
	status, err := ParseItemStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func ParseItemStatus(s string) (ItemStatus, error) {
	switch s {
	case "active":
		return ItemActive, nil
	case "ended":
		return ItemEnded, nil
	case "cancelled":
		return ItemCancelled, nil
	}
	return ItemActive, fmt.Errorf("unknown item status %q", s)
}

// Terminal reports whether no further transitions are allowed.
func (s ItemStatus) Terminal() bool {
	return s == ItemEnded || s == ItemCancelled
}

type Category string

const (
	CategoryArt          Category = "Art"
	CategoryElectronics  Category = "Electronics"
	CategoryFashion      Category = "Fashion"
	CategoryCollectibles Category = "Collectibles"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryArt, CategoryElectronics, CategoryFashion, CategoryCollectibles:
		return true
	}
	return false
}

// ItemFilter narrows ListActiveItems. Zero value lists every active item.
type ItemFilter struct {
	SellerID string
}

type Bid struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Leads reports whether b ranks above other: higher amount, then earlier timestamp.
func (b *Bid) Leads(other *Bid) bool {
	if other == nil {
		return true
	}
	if c := b.Amount.Cmp(other.Amount); c != 0 {
		return c > 0
	}
	return b.CreatedAt.Before(other.CreatedAt)
}

// UserBid is one row of a bidder's "my bids" view.
type UserBid struct {
	Item          *Item           `json:"item"`
	UserMaxAmount decimal.Decimal `json:"user_max_amount"`
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	ItemID    string           `json:"item_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	BidAmount *decimal.Decimal `json:"bid_amount,omitempty"`
	ItemTitle string           `json:"item_title"`
	ItemImage string           `json:"item_image,omitempty"`
	EventKey  string           `json:"-"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationType string

const (
	NotificationBid    NotificationType = "bid"
	NotificationOutbid NotificationType = "outbid"
	NotificationEnd    NotificationType = "end"
)

type BidEvent struct {
	Type      BidEventType    `json:"type"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted      BidEventType = "bid_accepted"
	AuctionEnded     BidEventType = "auction_ended"
	AuctionCancelled BidEventType = "auction_cancelled"
)

// ItemState is the cached, publicly visible slice of an item.
type ItemState struct {
	ItemID       string
	CurrentPrice decimal.Decimal
	LeaderID     string
	Status       ItemStatus
}

type ScheduledJob struct {
	ID        string
	ItemID    string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobEndAuction JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
