package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds the OpenTelemetry instruments exported over OTLP.
// All methods are safe on a nil receiver.
type OTelMetrics struct {
	syncAttempts    metric.Int64Counter
	syncDuration    metric.Float64Histogram
	observerTrigger metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return newOTelMetrics(otel.Meter("github.com/platinummonkey/idsync"))
}

func newOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.syncAttempts, err = meter.Int64Counter(
		"idsync.sync.attempts",
		metric.WithDescription("User record sync attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync attempts counter: %w", err)
	}

	m.syncDuration, err = meter.Float64Histogram(
		"idsync.sync.duration",
		metric.WithDescription("User record sync duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync duration histogram: %w", err)
	}

	m.observerTrigger, err = meter.Int64Counter(
		"idsync.observer.triggers",
		metric.WithDescription("Sync triggers fired by the session observer"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer trigger counter: %w", err)
	}

	return m, nil
}

// RecordSync records one sync attempt; an empty reason means success
func (m *OTelMetrics) RecordSync(ctx context.Context, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("status", SyncStatusSuccess)}
	if reason != "" {
		attrs = []attribute.KeyValue{
			attribute.String("status", SyncStatusFailure),
			attribute.String("reason", reason),
		}
	}
	m.syncAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTrigger counts one observer trigger
func (m *OTelMetrics) RecordTrigger(ctx context.Context) {
	if m == nil {
		return
	}
	m.observerTrigger.Add(ctx, 1)
}
