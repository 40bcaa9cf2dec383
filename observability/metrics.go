package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"lobbybot/config"
	"lobbybot/events"
)

// MetricsProvider manages OpenTelemetry metrics for the bot. It doubles as
// the cache's hit/miss sink and as an event bus subscriber for the
// lifecycle counters.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	subscriptions []*events.Subscription

	// Metric instruments
	channelsCreatedCounter   metric.Int64Counter
	channelsDeletedCounter   metric.Int64Counter
	channelsAbandonedCounter metric.Int64Counter
	channelsActiveGauge      metric.Int64UpDownCounter
	ownerChangesCounter      metric.Int64Counter
	sweepReapsCounter        metric.Int64Counter
	cacheHitsCounter         metric.Int64Counter
	cacheMissesCounter       metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the OpenTelemetry metrics provider. With metrics
// disabled every recorder becomes a no-op.
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	if mp.config.OTelEndpoint == "" {
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")
	} else {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Infof("Using OTLP metric exporter: %s", mp.config.OTelEndpoint)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("lobbybot")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.channelsCreatedCounter, err = mp.meter.Int64Counter(
		ChannelsCreatedTotal,
		metric.WithDescription("Total number of dynamic channels provisioned"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create channels created counter: %w", err)
	}

	mp.channelsDeletedCounter, err = mp.meter.Int64Counter(
		ChannelsDeletedTotal,
		metric.WithDescription("Total number of dynamic channels deleted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create channels deleted counter: %w", err)
	}

	mp.channelsAbandonedCounter, err = mp.meter.Int64Counter(
		ChannelsAbandonedTotal,
		metric.WithDescription("Total number of abandonment grace timers started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create channels abandoned counter: %w", err)
	}

	mp.channelsActiveGauge, err = mp.meter.Int64UpDownCounter(
		ChannelsActive,
		metric.WithDescription("Current number of dynamic channels"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create channels active gauge: %w", err)
	}

	mp.ownerChangesCounter, err = mp.meter.Int64Counter(
		OwnerChangesTotal,
		metric.WithDescription("Total number of ownership claims and transfers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create owner changes counter: %w", err)
	}

	mp.sweepReapsCounter, err = mp.meter.Int64Counter(
		SweepReapsTotal,
		metric.WithDescription("Total number of channels removed by the reconciliation sweep"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep reaps counter: %w", err)
	}

	mp.cacheHitsCounter, err = mp.meter.Int64Counter(
		CacheHitsTotal,
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	mp.cacheMissesCounter, err = mp.meter.Int64Counter(
		CacheMissesTotal,
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	return nil
}

// SubscribeToEvents wires the lifecycle counters to the event bus. Cancel the
// returned subscriptions via Shutdown.
func (mp *MetricsProvider) SubscribeToEvents(bus *events.Bus) {
	mp.subscriptions = append(mp.subscriptions,
		bus.Subscribe(events.EventTypeChannelCreated, func(ctx context.Context, e events.Event) {
			mp.RecordChannelCreated()
		}),
		bus.Subscribe(events.EventTypeChannelDeleted, func(ctx context.Context, e events.Event) {
			mp.RecordChannelDeleted()
		}),
		bus.Subscribe(events.EventTypeChannelAbandoned, func(ctx context.Context, e events.Event) {
			mp.RecordChannelAbandoned()
		}),
		bus.Subscribe(events.EventTypeOwnerChanged, func(ctx context.Context, e events.Event) {
			change, ok := e.(events.OwnerChangedEvent)
			if !ok {
				return
			}
			if change.Claimed {
				mp.RecordOwnerChange(OwnerChangeClaim)
			} else {
				mp.RecordOwnerChange(OwnerChangeTransfer)
			}
		}),
		bus.Subscribe(events.EventTypeSweepReap, func(ctx context.Context, e events.Event) {
			mp.RecordSweepReap()
		}),
	)
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, sub := range mp.subscriptions {
		sub.Cancel()
	}
	mp.subscriptions = nil

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.meterProvider != nil
}

// RecordChannelCreated records a dynamic channel being provisioned
func (mp *MetricsProvider) RecordChannelCreated() {
	if !mp.isEnabled() {
		return
	}
	mp.channelsCreatedCounter.Add(context.Background(), 1)
	mp.channelsActiveGauge.Add(context.Background(), 1)
}

// RecordChannelDeleted records a dynamic channel being removed
func (mp *MetricsProvider) RecordChannelDeleted() {
	if !mp.isEnabled() {
		return
	}
	mp.channelsDeletedCounter.Add(context.Background(), 1)
	mp.channelsActiveGauge.Add(context.Background(), -1)
}

// RecordChannelAbandoned records a grace timer being started
func (mp *MetricsProvider) RecordChannelAbandoned() {
	if !mp.isEnabled() {
		return
	}
	mp.channelsAbandonedCounter.Add(context.Background(), 1)
}

// RecordOwnerChange records an ownership claim or transfer
func (mp *MetricsProvider) RecordOwnerChange(changeType string) {
	if !mp.isEnabled() {
		return
	}
	mp.ownerChangesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelType, changeType)),
	)
}

// RecordSweepReap records a channel removed by the reconciliation sweep
func (mp *MetricsProvider) RecordSweepReap() {
	if !mp.isEnabled() {
		return
	}
	mp.sweepReapsCounter.Add(context.Background(), 1)
}

// CacheHit implements the cache metrics sink
func (mp *MetricsProvider) CacheHit(kind string) {
	if !mp.isEnabled() {
		return
	}
	mp.cacheHitsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelKind, kind)),
	)
}

// CacheMiss implements the cache metrics sink
func (mp *MetricsProvider) CacheMiss(kind string) {
	if !mp.isEnabled() {
		return
	}
	mp.cacheMissesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelKind, kind)),
	)
}
