package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NotificationIntent is a notification that must be persisted for one
// recipient of one triggering event.
type NotificationIntent struct {
	EventKey  string
	Recipient string
	ItemID    string
	Type      NotificationType
	Message   string
	BidAmount *decimal.Decimal
	ItemTitle string
	ItemImage string
}

func bidEventKey(bid *Bid) string   { return "bid:" + bid.ID }
func endEventKey(item *Item) string { return "end:" + item.ID }

// PlanBidNotifications decides who hears about an accepted bid. The seller
// gets a bid notice unless they placed it; the previous leader gets an outbid
// notice unless they are the new bidder or the seller. The bidder is never
// notified.
func PlanBidNotifications(item *Item, bid *Bid, previousLeader *Bid) []NotificationIntent {
	var intents []NotificationIntent
	amount := bid.Amount

	if item.SellerID != "" && item.SellerID != bid.BidderID {
		intents = append(intents, NotificationIntent{
			EventKey:  bidEventKey(bid),
			Recipient: item.SellerID,
			ItemID:    item.ID,
			Type:      NotificationBid,
			Message:   fmt.Sprintf("Someone placed a new bid on your item: %s", item.Title),
			BidAmount: &amount,
			ItemTitle: item.Title,
			ItemImage: item.ImageURL,
		})
	}

	if previousLeader != nil &&
		previousLeader.BidderID != bid.BidderID &&
		previousLeader.BidderID != item.SellerID {
		intents = append(intents, NotificationIntent{
			EventKey:  bidEventKey(bid),
			Recipient: previousLeader.BidderID,
			ItemID:    item.ID,
			Type:      NotificationOutbid,
			Message:   fmt.Sprintf("You have been outbid on %q. New bid: $%s", item.Title, amount.StringFixed(2)),
			BidAmount: &amount,
			ItemTitle: item.Title,
			ItemImage: item.ImageURL,
		})
	}

	return intents
}

// PlanCloseNotifications returns the single end notice for the seller.
func PlanCloseNotifications(item *Item) []NotificationIntent {
	if item.SellerID == "" {
		return nil
	}
	return []NotificationIntent{{
		EventKey:  endEventKey(item),
		Recipient: item.SellerID,
		ItemID:    item.ID,
		Type:      NotificationEnd,
		Message:   fmt.Sprintf("Auction ended for your item: %s", item.Title),
		ItemTitle: item.Title,
		ItemImage: item.ImageURL,
	}}
}
