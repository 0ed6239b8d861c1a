package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
	"silent-auction/pkg/utils"
)

// classify passes business rejections through untouched and marks every
// other failure as transient.
func classify(op string, err error) error {
	if err == nil || domain.IsBusinessRejection(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransient, err)
}

type AuctionManager struct {
	itemRepo   domain.ItemRepository
	stateCache domain.ItemStateCache
	eventPub   domain.EventPublisher
	dispatcher domain.NotificationDispatcher
	scheduler  domain.AuctionScheduler
	log        logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewAuctionManager(
	itemRepo domain.ItemRepository,
	stateCache domain.ItemStateCache,
	eventPub domain.EventPublisher,
	dispatcher domain.NotificationDispatcher,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		itemRepo:   itemRepo,
		stateCache: stateCache,
		eventPub:   eventPub,
		dispatcher: dispatcher,
		log:        log,
		tracer:     otel.Tracer("silent-auction/services"),
		now:        time.Now,
	}
}

// SetScheduler breaks the construction cycle between the manager and the
// scheduler that calls back into it.
func (am *AuctionManager) SetScheduler(scheduler domain.AuctionScheduler) {
	am.scheduler = scheduler
}

func (am *AuctionManager) CreateItem(ctx context.Context, params CreateItemParams) (*domain.Item, error) {
	now := am.now().UTC()
	if err := validateCreateItem(&params, now); err != nil {
		return nil, err
	}

	item := &domain.Item{
		ID:            utils.GenerateID(""),
		SellerID:      params.SellerID,
		Title:         params.Title,
		Description:   params.Description,
		Category:      params.Category,
		ImageURL:      params.ImageURL,
		StartingPrice: params.StartingPrice,
		CurrentPrice:  params.StartingPrice,
		Deadline:      params.Deadline.UTC(),
		Status:        domain.ItemActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// The end job goes in first: a job whose item never got created is
	// discarded when it fires, while an item without a job would never close.
	if am.scheduler != nil {
		if err := am.scheduler.ScheduleAuctionEnd(ctx, item.ID, item.Deadline); err != nil {
			return nil, classify("schedule auction end", err)
		}
	}

	if err := am.itemRepo.CreateItem(ctx, item); err != nil {
		return nil, classify("create item", err)
	}

	if err := am.stateCache.InitializeItem(ctx, item); err != nil {
		am.log.Warn("Failed to seed item state cache", "item_id", item.ID, "error", err)
	}

	am.log.Info("Item created", "item_id", item.ID, "seller_id", item.SellerID, "deadline", item.Deadline)
	return item, nil
}

func (am *AuctionManager) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := am.itemRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, classify("get item", err)
	}
	return item, nil
}

func (am *AuctionManager) ListActiveItems(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error) {
	items, err := am.itemRepo.ListActiveItems(ctx, filter)
	if err != nil {
		return nil, classify("list active items", err)
	}
	return items, nil
}

// CloseAuction moves an active item to ended and tells the seller. Closing an
// item that is no longer active returns it unchanged.
func (am *AuctionManager) CloseAuction(ctx context.Context, itemID string) (*domain.Item, error) {
	ctx, span := am.tracer.Start(ctx, "AuctionManager.CloseAuction",
		trace.WithAttributes(attribute.String("item.id", itemID)))
	defer span.End()

	item, changed, err := am.transition(ctx, itemID, domain.ItemEnded, func(*domain.Item) error { return nil })
	if err != nil {
		return nil, classify("close auction", err)
	}
	if !changed {
		am.log.Debug("Close skipped, item not active", "item_id", itemID, "status", item.Status)
		return item, nil
	}

	am.log.Info("Auction closed", "item_id", itemID, "final_price", item.CurrentPrice.StringFixed(2))
	am.dispatcher.Enqueue(ctx, domain.PlanCloseNotifications(item)...)
	am.afterTransition(ctx, item, domain.AuctionEnded)
	return item, nil
}

// CancelAuction withdraws an active listing. Only the seller may cancel and
// nobody is notified.
func (am *AuctionManager) CancelAuction(ctx context.Context, itemID, requesterID string) (*domain.Item, error) {
	if requesterID == "" {
		return nil, validationError("requester id is required")
	}

	item, changed, err := am.transition(ctx, itemID, domain.ItemCancelled, func(item *domain.Item) error {
		if item.SellerID != requesterID {
			return fmt.Errorf("user %s cannot cancel item %s: %w", requesterID, itemID, domain.ErrForbidden)
		}
		return nil
	})
	if err != nil {
		return nil, classify("cancel auction", err)
	}
	if !changed {
		return item, nil
	}

	am.log.Info("Auction cancelled", "item_id", itemID, "seller_id", requesterID)
	am.afterTransition(ctx, item, domain.AuctionCancelled)
	return item, nil
}

// transition applies an active -> terminal status change under the item lock.
// check runs before the status test so authorization failures win over no-ops.
func (am *AuctionManager) transition(ctx context.Context, itemID string, to domain.ItemStatus,
	check func(*domain.Item) error) (*domain.Item, bool, error) {
	var item *domain.Item
	var changed bool

	err := am.itemRepo.WithItemTx(ctx, itemID, func(tx domain.ItemTx) error {
		current := tx.Item()
		if err := check(current); err != nil {
			return err
		}
		if current.Status != domain.ItemActive {
			item = current
			return nil
		}
		if err := tx.SetStatus(ctx, to); err != nil {
			return err
		}
		item, changed = tx.Item(), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return item, changed, nil
}

// afterTransition runs the post-commit side effects of a status change. None
// of them can undo it, so failures are only logged.
func (am *AuctionManager) afterTransition(ctx context.Context, item *domain.Item, eventType domain.BidEventType) {
	if err := am.stateCache.SetStatus(ctx, item.ID, item.Status); err != nil {
		am.log.Warn("Failed to update item state cache", "item_id", item.ID, "error", err)
	}

	if am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, item.ID); err != nil {
			am.log.Warn("Failed to cancel scheduled jobs", "item_id", item.ID, "error", err)
		}
	}

	event := &domain.BidEvent{
		Type:      eventType,
		ItemID:    item.ID,
		Amount:    item.CurrentPrice,
		Timestamp: am.now().UTC(),
	}
	if err := am.eventPub.PublishBidEvent(ctx, event); err != nil {
		am.log.Warn("Failed to publish event", "item_id", item.ID, "type", eventType, "error", err)
	}
}
