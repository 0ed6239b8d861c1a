package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

// EventRecorder turns the published event stream into metrics: event counts
// per type and the distribution of accepted bid amounts.
type EventRecorder struct {
	log     logger.Logger
	events  metric.Int64Counter
	amounts metric.Float64Histogram
}

func NewEventRecorder(mp metric.MeterProvider, log logger.Logger) *EventRecorder {
	meter := mp.Meter("silent-auction/analytics")
	events, err := meter.Int64Counter("auction.events",
		metric.WithDescription("Events observed on the auction event channel"))
	if err != nil {
		log.Warn("Failed to create auction.events counter", "error", err)
	}
	amounts, err := meter.Float64Histogram("auction.bid_amount",
		metric.WithDescription("Accepted bid amounts"))
	if err != nil {
		log.Warn("Failed to create auction.bid_amount histogram", "error", err)
	}
	return &EventRecorder{log: log, events: events, amounts: amounts}
}

func (r *EventRecorder) Record(ctx context.Context, event *domain.BidEvent) error {
	attrs := metric.WithAttributes(attribute.String("type", string(event.Type)))
	if r.events != nil {
		r.events.Add(ctx, 1, attrs)
	}
	if event.Type == domain.BidAccepted && r.amounts != nil {
		amount, _ := event.Amount.Float64()
		r.amounts.Record(ctx, amount)
	}

	r.log.Info("Auction event", "type", event.Type, "item_id", event.ItemID,
		"user_id", event.UserID, "amount", event.Amount.StringFixed(2), "timestamp", event.Timestamp)
	return nil
}
