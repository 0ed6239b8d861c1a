package domain

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestPlanBidNotifications(t *testing.T) {
	t.Parallel()

	item := &Item{ID: "item-1", SellerID: "seller", Title: "Vase", ImageURL: "https://img/vase.png"}
	bidBy := func(id, bidder, amount string) *Bid {
		return &Bid{ID: id, ItemID: item.ID, BidderID: bidder, Amount: decimal.RequireFromString(amount), CreatedAt: time.Now()}
	}

	type recipient struct {
		user string
		kind NotificationType
	}

	tests := []struct {
		name     string
		bid      *Bid
		previous *Bid
		want     []recipient
	}{
		{
			name: "first bid notifies seller only",
			bid:  bidBy("b1", "alice", "100"),
			want: []recipient{{"seller", NotificationBid}},
		},
		{
			name:     "outbid previous leader and seller",
			bid:      bidBy("b2", "bob", "150"),
			previous: bidBy("b1", "alice", "100"),
			want:     []recipient{{"seller", NotificationBid}, {"alice", NotificationOutbid}},
		},
		{
			name:     "leader raising own bid is not outbid",
			bid:      bidBy("b2", "alice", "150"),
			previous: bidBy("b1", "alice", "100"),
			want:     []recipient{{"seller", NotificationBid}},
		},
		{
			name:     "seller bidding on own item gets nothing",
			bid:      bidBy("b2", "seller", "150"),
			previous: bidBy("b1", "alice", "100"),
			want:     []recipient{{"alice", NotificationOutbid}},
		},
		{
			name:     "previous leader who is the seller is not outbid",
			bid:      bidBy("b2", "bob", "150"),
			previous: bidBy("b1", "seller", "100"),
			want:     []recipient{{"seller", NotificationBid}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			intents := PlanBidNotifications(item, tt.bid, tt.previous)
			check.Equal(t, len(tt.want), len(intents))

			for i, intent := range intents {
				if i >= len(tt.want) {
					break
				}
				check.Equal(t, tt.want[i].user, intent.Recipient)
				check.Equal(t, tt.want[i].kind, intent.Type)
				check.Equal(t, "bid:"+tt.bid.ID, intent.EventKey)
				check.Equal(t, item.ID, intent.ItemID)
				check.Equal(t, item.Title, intent.ItemTitle)
				check.Equal(t, item.ImageURL, intent.ItemImage)
				check.NotEqual(t, tt.bid.BidderID, intent.Recipient)
				check.True(t, intent.BidAmount != nil && intent.BidAmount.Equal(tt.bid.Amount))
			}
		})
	}
}

func TestPlanBidNotificationsMessages(t *testing.T) {
	t.Parallel()

	item := &Item{ID: "item-1", SellerID: "seller", Title: "Vase"}
	previous := &Bid{ID: "b1", BidderID: "alice", Amount: decimal.NewFromInt(100)}
	bid := &Bid{ID: "b2", BidderID: "bob", Amount: decimal.RequireFromString("150.5")}

	intents := PlanBidNotifications(item, bid, previous)
	check.Equal(t, 2, len(intents))
	check.Equal(t, "Someone placed a new bid on your item: Vase", intents[0].Message)
	check.Equal(t, `You have been outbid on "Vase". New bid: $150.50`, intents[1].Message)
}

func TestPlanCloseNotifications(t *testing.T) {
	t.Parallel()

	item := &Item{ID: "item-1", SellerID: "seller", Title: "Vase"}
	intents := PlanCloseNotifications(item)

	check.Equal(t, 1, len(intents))
	check.Equal(t, "seller", intents[0].Recipient)
	check.Equal(t, NotificationEnd, intents[0].Type)
	check.Equal(t, "end:item-1", intents[0].EventKey)
	check.Equal(t, "Auction ended for your item: Vase", intents[0].Message)
	check.True(t, intents[0].BidAmount == nil)
}
