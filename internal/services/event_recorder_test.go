package services

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
)

func newManualMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// collect returns every metric the reader has seen, keyed by name.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	assert.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// countsBy sums an int64 counter per value of the attribute key.
func countsBy(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	assert.True(t, ok)

	out := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestEventRecorderCountsEventsAndAmounts(t *testing.T) {
	reader, mp := newManualMeter()
	recorder := NewEventRecorder(mp, logger.NewNop())
	ctx := context.Background()

	events := []struct {
		eventType domain.BidEventType
		amount    string
	}{
		{domain.BidAccepted, "12.5"},
		{domain.BidAccepted, "20"},
		{domain.AuctionEnded, "20"},
		{domain.AuctionCancelled, "0"},
	}
	for _, e := range events {
		err := recorder.Record(ctx, &domain.BidEvent{
			Type:      e.eventType,
			ItemID:    "item-1",
			Amount:    decimal.RequireFromString(e.amount),
			Timestamp: time.Now(),
		})
		check.NoError(t, err)
	}

	metrics := collect(t, reader)
	check.Equal(t, map[string]int64{
		string(domain.BidAccepted):      2,
		string(domain.AuctionEnded):     1,
		string(domain.AuctionCancelled): 1,
	}, countsBy(t, metrics["auction.events"], "type"))

	hist, ok := metrics["auction.bid_amount"].(metricdata.Histogram[float64])
	assert.True(t, ok)
	assert.Equal(t, 1, len(hist.DataPoints))
	check.Equal(t, uint64(2), hist.DataPoints[0].Count)
	check.Equal(t, 32.5, hist.DataPoints[0].Sum)
}
