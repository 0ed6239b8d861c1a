package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
	"silent-auction/pkg/utils"
)

// BidService is the bid acceptance engine. Acceptance is decided inside the
// item's critical section; everything after commit is best effort.
type BidService struct {
	itemRepo   domain.ItemRepository
	bidRepo    domain.BidRepository
	stateCache domain.ItemStateCache
	eventPub   domain.EventPublisher
	dispatcher domain.NotificationDispatcher
	log        logger.Logger
	tracer     trace.Tracer
	accepted   metric.Int64Counter
	rejected   metric.Int64Counter
	now        func() time.Time
}

func NewBidService(
	itemRepo domain.ItemRepository,
	bidRepo domain.BidRepository,
	stateCache domain.ItemStateCache,
	eventPub domain.EventPublisher,
	dispatcher domain.NotificationDispatcher,
	log logger.Logger,
) *BidService {
	s := &BidService{
		itemRepo:   itemRepo,
		bidRepo:    bidRepo,
		stateCache: stateCache,
		eventPub:   eventPub,
		dispatcher: dispatcher,
		log:        log,
		tracer:     otel.Tracer("silent-auction/services"),
		now:        time.Now,
	}
	s.SetMeterProvider(otel.GetMeterProvider())
	return s
}

// SetMeterProvider replaces the provider behind the bid counters.
func (s *BidService) SetMeterProvider(mp metric.MeterProvider) {
	meter := mp.Meter("silent-auction/services")
	accepted, err := meter.Int64Counter("bids.accepted",
		metric.WithDescription("Bids committed to the ledger"))
	if err != nil {
		s.log.Warn("Failed to create bids.accepted counter", "error", err)
	}
	rejected, err := meter.Int64Counter("bids.rejected",
		metric.WithDescription("Bids rejected by business rules"))
	if err != nil {
		s.log.Warn("Failed to create bids.rejected counter", "error", err)
	}
	s.accepted, s.rejected = accepted, rejected
}

func (s *BidService) PlaceBid(ctx context.Context, itemID, bidderID string, amount decimal.Decimal) (bid *domain.Bid, err error) {
	ctx, span := s.tracer.Start(ctx, "BidService.PlaceBid", trace.WithAttributes(
		attribute.String("item.id", itemID),
		attribute.String("bidder.id", bidderID),
	))
	defer func() {
		switch {
		case err == nil:
			s.count(ctx, s.accepted, "accepted")
		case domain.IsBusinessRejection(err):
			s.count(ctx, s.rejected, rejectionReason(err))
			span.SetAttributes(attribute.String("bid.rejection", rejectionReason(err)))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	amount, err = validateBid(itemID, bidderID, amount)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("bid.amount", amount.StringFixed(2)))

	if err := s.fastReject(ctx, itemID, amount); err != nil {
		s.log.Info("Bid rejected from cache", "item_id", itemID, "bidder_id", bidderID, "reason", err)
		return nil, err
	}

	var item *domain.Item
	var previousLeader *domain.Bid

	err = s.itemRepo.WithItemTx(ctx, itemID, func(tx domain.ItemTx) error {
		current := tx.Item()
		if current.Status != domain.ItemActive {
			return fmt.Errorf("item %s is %s: %w", itemID, current.Status, domain.ErrAuctionClosed)
		}
		if !amount.GreaterThan(current.CurrentPrice) {
			return fmt.Errorf("bid %s does not exceed current price %s: %w",
				amount.StringFixed(2), current.CurrentPrice.StringFixed(2), domain.ErrBidTooLow)
		}

		leader, err := tx.LeadingBid(ctx)
		if err != nil {
			return err
		}

		candidate := &domain.Bid{
			ID:        utils.GenerateID(""),
			ItemID:    itemID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.AppendBid(ctx, candidate); err != nil {
			return err
		}
		if err := tx.ApplyBid(ctx, candidate); err != nil {
			return err
		}

		bid, item, previousLeader = candidate, tx.Item(), leader
		return nil
	})
	if err != nil {
		if domain.IsBusinessRejection(err) {
			s.log.Info("Bid rejected", "item_id", itemID, "bidder_id", bidderID, "reason", err)
		} else {
			s.log.Error("Bid transaction failed", "item_id", itemID, "bidder_id", bidderID, "error", err)
		}
		return nil, classify("place bid", err)
	}

	s.log.Info("Bid accepted", "item_id", itemID, "bid_id", bid.ID, "bidder_id", bidderID,
		"amount", amount.StringFixed(2))
	s.afterCommit(ctx, item, bid, previousLeader)
	return bid, nil
}

// fastReject consults the state cache. The cache only holds committed prices
// and terminal statuses, so any rejection here would also happen under the
// lock. Cache faults are ignored.
func (s *BidService) fastReject(ctx context.Context, itemID string, amount decimal.Decimal) error {
	state, err := s.stateCache.GetItemState(ctx, itemID)
	if err != nil {
		s.log.Debug("State cache unavailable", "item_id", itemID, "error", err)
		return nil
	}
	if state == nil {
		return nil
	}
	if state.Status.Terminal() {
		return fmt.Errorf("item %s is %s: %w", itemID, state.Status, domain.ErrAuctionClosed)
	}
	if !amount.GreaterThan(state.CurrentPrice) {
		return fmt.Errorf("bid %s does not exceed current price %s: %w",
			amount.StringFixed(2), state.CurrentPrice.StringFixed(2), domain.ErrBidTooLow)
	}
	return nil
}

func (s *BidService) afterCommit(ctx context.Context, item *domain.Item, bid, previousLeader *domain.Bid) {
	s.dispatcher.Enqueue(ctx, domain.PlanBidNotifications(item, bid, previousLeader)...)

	if err := s.stateCache.RaisePrice(ctx, item.ID, bid.Amount, bid.BidderID); err != nil {
		s.log.Warn("Failed to raise cached price", "item_id", item.ID, "error", err)
	}

	event := &domain.BidEvent{
		Type:      domain.BidAccepted,
		ItemID:    item.ID,
		UserID:    bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: bid.CreatedAt,
	}
	if err := s.eventPub.PublishBidEvent(ctx, event); err != nil {
		s.log.Warn("Failed to publish bid event", "item_id", item.ID, "error", err)
	}
}

func (s *BidService) count(ctx context.Context, counter metric.Int64Counter, outcome string) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAuctionClosed):
		return "auction_closed"
	case errors.Is(err, domain.ErrBidTooLow):
		return "bid_too_low"
	default:
		return "other"
	}
}

func (s *BidService) LeadingBid(ctx context.Context, itemID string) (*domain.Bid, error) {
	if _, err := s.itemRepo.GetItem(ctx, itemID); err != nil {
		return nil, classify("get item", err)
	}
	bid, err := s.bidRepo.LeadingBid(ctx, itemID)
	if err != nil {
		return nil, classify("leading bid", err)
	}
	return bid, nil
}

func (s *BidService) ListBidsForItem(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	if _, err := s.itemRepo.GetItem(ctx, itemID); err != nil {
		return nil, classify("get item", err)
	}
	bids, err := s.bidRepo.ListBidsForItem(ctx, itemID)
	if err != nil {
		return nil, classify("list bids", err)
	}
	return bids, nil
}

func (s *BidService) ListUserBids(ctx context.Context, userID string) ([]*domain.UserBid, error) {
	if userID == "" {
		return nil, validationError("user id is required")
	}
	bids, err := s.bidRepo.ListUserBids(ctx, userID)
	if err != nil {
		return nil, classify("list user bids", err)
	}
	return bids, nil
}
