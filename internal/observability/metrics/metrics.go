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

// Metrics exposes usage accounting instruments.
type Metrics struct {
	aggregations    metric.Int64Counter
	currentQueries  metric.Int64Counter
	reports         metric.Int64Counter
	quotaExceeded   metric.Int64Counter
	aggregationTime metric.Float64Histogram
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
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("otlp metrics exporter ready",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the usage instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "wadesk"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := map[string]*metric.Int64Counter{
		"wadesk_usage_aggregations_total":    &m.aggregations,
		"wadesk_usage_current_queries_total": &m.currentQueries,
		"wadesk_usage_reports_total":         &m.reports,
		"wadesk_usage_quota_exceeded_total":  &m.quotaExceeded,
	}
	for instrument, dst := range counters {
		counter, err := meter.Int64Counter(instrument)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", instrument, err)
		}
		*dst = counter
	}

	hist, err := meter.Float64Histogram("wadesk_usage_aggregation_duration_seconds", metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}
	m.aggregationTime = hist
	return m, nil
}

// RecordAggregation counts one daily aggregation attempt.
func (m *Metrics) RecordAggregation(ctx context.Context, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("result", strings.TrimSpace(result)))...)
	m.aggregations.Add(ctx, 1, attrs)
	m.aggregationTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordCurrentUsageQuery(ctx context.Context, plan string) {
	if m == nil {
		return
	}
	m.currentQueries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("plan", strings.TrimSpace(plan)))...))
}

func (m *Metrics) RecordReport(ctx context.Context) {
	if m == nil {
		return
	}
	m.reports.Add(ctx, 1)
}

// RecordQuotaExceeded counts a quota found at or above its plan ceiling.
func (m *Metrics) RecordQuotaExceeded(ctx context.Context, plan, quota string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("plan", strings.TrimSpace(plan)),
		attribute.String("quota", strings.TrimSpace(quota)),
	)
	m.quotaExceeded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
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

// Tenant ids are deliberately absent: per-tenant labels would explode cardinality.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"result":      {},
	"plan":        {},
	"quota":       {},
	"endpoint":    {},
	"status_code": {},
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
