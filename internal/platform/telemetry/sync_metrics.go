package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records synchronization cycle outcomes. It satisfies the
// synchronizer's cycle recorder.
type SyncMetrics struct {
	cycles    metric.Int64Counter
	conflicts metric.Int64Counter
	merged    metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewSyncMetrics creates the sync instruments on the global meter.
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	cycles, err := meter.Int64Counter(
		"quotesync.sync.cycles",
		metric.WithDescription("Completed sync cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter(
		"quotesync.sync.conflicts",
		metric.WithDescription("Conflicts detected across sync cycles"),
	)
	if err != nil {
		return nil, err
	}

	merged, err := meter.Int64Counter(
		"quotesync.sync.merged",
		metric.WithDescription("Remote quotes appended to the local store"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"quotesync.sync.duration",
		metric.WithDescription("Sync cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycles:    cycles,
		conflicts: conflicts,
		merged:    merged,
		duration:  duration,
	}, nil
}

// RecordCycle records one finished cycle.
func (m *SyncMetrics) RecordCycle(ctx context.Context, outcome string, conflicts, merged int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	m.cycles.Add(ctx, 1, attrs)
	m.conflicts.Add(ctx, int64(conflicts))
	m.merged.Add(ctx, int64(merged))
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// StoreGauges exposes the current store size and pending conflict count on
// the Prometheus registry.
type StoreGauges struct {
	collectors []prometheus.Collector
}

// NewStoreGauges builds gauge funcs reading quoteCount and pendingConflicts on
// every scrape.
func NewStoreGauges(quoteCount, pendingConflicts func() int) *StoreGauges {
	return &StoreGauges{
		collectors: []prometheus.Collector{
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "quotesync",
				Name:      "store_quotes",
				Help:      "Number of quotes in the local store.",
			}, func() float64 { return float64(quoteCount()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "quotesync",
				Name:      "sync_pending_conflicts",
				Help:      "Number of unresolved sync conflicts.",
			}, func() float64 { return float64(pendingConflicts()) }),
		},
	}
}

// Register adds the gauges to reg. Already-registered gauges are tolerated
// so the CLI and tests can build several stores in one process.
func (g *StoreGauges) Register(reg prometheus.Registerer) error {
	for _, c := range g.collectors {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	return nil
}
