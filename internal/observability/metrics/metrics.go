package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	paymentsProcessed metric.Int64Counter
	paymentsRejected  metric.Int64Counter
	penaltyIncrements metric.Int64Counter
	journalEntries    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "cobranza"
	}
	meter := provider.Meter(name)

	paymentsProcessed, err := meter.Int64Counter("cobranza_payments_processed_total")
	if err != nil {
		return nil, err
	}
	paymentsRejected, err := meter.Int64Counter("cobranza_payments_rejected_total")
	if err != nil {
		return nil, err
	}
	penaltyIncrements, err := meter.Int64Counter("cobranza_penalty_increments_total")
	if err != nil {
		return nil, err
	}
	journalEntries, err := meter.Int64Counter("cobranza_journal_entries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentsProcessed: paymentsProcessed,
		paymentsRejected:  paymentsRejected,
		penaltyIncrements: penaltyIncrements,
		journalEntries:    journalEntries,
	}, nil
}

// RecordPayment increments processed payment counts per method.
func (m *Metrics) RecordPayment(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", strings.TrimSpace(method)),
	))
}

// RecordPaymentRejected increments rejected payment counts per reason.
func (m *Metrics) RecordPaymentRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.paymentsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

// RecordPenaltyIncrements adds accrued penalty increment counts.
func (m *Metrics) RecordPenaltyIncrements(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.penaltyIncrements.Add(ctx, int64(count))
}

// RecordJournalEntry increments posted journal entry counts.
func (m *Metrics) RecordJournalEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	m.journalEntries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
