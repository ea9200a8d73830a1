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
	vipPurchases      metric.Int64Counter
	ledgerEntries     metric.Int64Counter
	gateChecks        metric.Int64Counter
	broadcastMessages metric.Int64Counter
	throttleDenied    metric.Int64Counter
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
		name = "animegate"
	}
	meter := provider.Meter(name)

	vipPurchases, err := meter.Int64Counter("animegate_vip_purchases_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("animegate_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	gateChecks, err := meter.Int64Counter("animegate_gate_checks_total")
	if err != nil {
		return nil, err
	}
	broadcastMessages, err := meter.Int64Counter("animegate_broadcast_messages_total")
	if err != nil {
		return nil, err
	}
	throttleDenied, err := meter.Int64Counter("animegate_throttle_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		vipPurchases:      vipPurchases,
		ledgerEntries:     ledgerEntries,
		gateChecks:        gateChecks,
		broadcastMessages: broadcastMessages,
		throttleDenied:    throttleDenied,
	}, nil
}

// RecordVIPPurchase counts purchase attempts by outcome.
func (m *Metrics) RecordVIPPurchase(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.vipPurchases.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType, direction string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source_type", strings.TrimSpace(sourceType)),
		attribute.String("direction", strings.TrimSpace(direction)),
	)
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGateCheck counts subscription checks by result.
func (m *Metrics) RecordGateCheck(ctx context.Context, passed bool) {
	if m == nil {
		return
	}
	result := "blocked"
	if passed {
		result = "passed"
	}
	attrs := FilterAttributes(attribute.String("result", result))
	m.gateChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBroadcastMessage counts delivered and failed broadcast copies.
func (m *Metrics) RecordBroadcastMessage(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.broadcastMessages.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordThrottleDenied counts inbound events dropped by the per-user throttle.
func (m *Metrics) RecordThrottleDenied(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.throttleDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"source_type": {},
	"direction":   {},
	"result":      {},
	"status":      {},
	"kind":        {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
