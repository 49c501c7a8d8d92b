package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nationbank/config"
	"nationbank/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider records ledger events as OpenTelemetry metrics
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	balanceChanges      metric.Int64Counter
	amountCredited      metric.Float64Counter
	amountDebited       metric.Float64Counter
	depositRequests     metric.Int64Counter
	depositDecisions    metric.Int64Counter
	withdrawalRequests  metric.Int64Counter
	withdrawalDecisions metric.Int64Counter
	escrowReleases      metric.Int64Counter
	mismatches          metric.Int64Counter
	difference          metric.Float64Gauge
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the meter provider with the configured exporter
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
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
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	interval := time.Duration(mp.config.OTelExportIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	if err := mp.start(res, reader); err != nil {
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

// start builds the meter provider around reader. Callers hold mp.mu.
func (mp *MetricsProvider) start(res *resource.Resource, reader sdkmetric.Reader) error {
	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("nationbank")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	int64Counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.balanceChanges, BalanceChangesTotal, "Total number of account balance changes"},
		{&mp.depositRequests, DepositRequestsTotal, "Total number of deposit requests submitted"},
		{&mp.depositDecisions, DepositDecisionsTotal, "Total number of deposit requests decided"},
		{&mp.withdrawalRequests, WithdrawalRequestsTotal, "Total number of withdrawals placed in escrow"},
		{&mp.withdrawalDecisions, WithdrawalDecisionsTotal, "Total number of withdrawals decided"},
		{&mp.escrowReleases, EscrowReleasesTotal, "Total number of escrow holds released"},
		{&mp.mismatches, LedgerMismatchesTotal, "Total number of failed reconciliation checks"},
	}
	for _, c := range int64Counters {
		*c.target, err = mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	mp.amountCredited, err = mp.meter.Float64Counter(AmountCredited,
		metric.WithDescription("Total amount credited to accounts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create amount credited counter: %w", err)
	}

	mp.amountDebited, err = mp.meter.Float64Counter(AmountDebited,
		metric.WithDescription("Total amount debited from accounts"),
	)
	if err != nil {
		return fmt.Errorf("failed to create amount debited counter: %w", err)
	}

	mp.difference, err = mp.meter.Float64Gauge(LedgerDifference,
		metric.WithDescription("Master balance minus balances and held escrow at the last failed check"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger difference gauge: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Attach subscribes the provider to every ledger event on the bus
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.SubscribeAll(mp.RecordEvent)
}

// RecordEvent updates the instruments for a single ledger event
func (mp *MetricsProvider) RecordEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.BalanceChangeEvent:
		attrs := metric.WithAttributes(attribute.String(LabelType, string(e.TransactionType)))
		mp.balanceChanges.Add(ctx, 1, attrs)
		if e.ChangeAmount.IsPositive() {
			mp.amountCredited.Add(ctx, e.ChangeAmount.InexactFloat64(), attrs)
		} else if e.ChangeAmount.IsNegative() {
			mp.amountDebited.Add(ctx, e.ChangeAmount.Neg().InexactFloat64(), attrs)
		}
	case events.DepositRequestedEvent:
		mp.depositRequests.Add(ctx, 1)
	case events.DepositDecidedEvent:
		mp.depositDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelStatus, string(e.Status))))
	case events.WithdrawalRequestedEvent:
		mp.withdrawalRequests.Add(ctx, 1)
	case events.WithdrawalDecidedEvent:
		mp.withdrawalDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelStatus, string(e.Status))))
	case events.EscrowReleasedEvent:
		mp.escrowReleases.Add(ctx, 1)
	case events.LedgerMismatchEvent:
		mp.mismatches.Add(ctx, 1)
		mp.difference.Record(ctx, e.Difference.InexactFloat64())
	}
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
