package services

import (
	"context"

	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
)

// NopStateCache is used when Redis is disabled. Every lookup is a miss.
type NopStateCache struct{}

func (NopStateCache) InitializeItem(context.Context, *domain.Item) error { return nil }

func (NopStateCache) GetItemState(context.Context, string) (*domain.ItemState, error) {
	return nil, nil
}

func (NopStateCache) RaisePrice(context.Context, string, decimal.Decimal, string) error { return nil }

func (NopStateCache) SetStatus(context.Context, string, domain.ItemStatus) error { return nil }

// NopEventPublisher drops events when Redis is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishBidEvent(context.Context, *domain.BidEvent) error { return nil }
