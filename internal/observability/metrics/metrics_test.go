package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "123"),
		attribute.String("plan", "premium"),
		attribute.String("quota", "messages"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "tenant_id" {
			t.Fatalf("expected tenant_id to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordAggregation(context.Background(), "ok", time.Second)
	m.RecordCurrentUsageQuery(context.Background(), "free")
	m.RecordReport(context.Background())
	m.RecordQuotaExceeded(context.Background(), "free", "messages")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "wadesk"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordAggregation(context.Background(), "ok", 10*time.Millisecond)
}

func TestNewWiresEveryInstrument(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordAggregation(ctx, "ok", 5*time.Millisecond)
	m.RecordCurrentUsageQuery(ctx, "free")
	m.RecordReport(ctx)
	m.RecordQuotaExceeded(ctx, "free", "messages")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	seen := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "wadesk" {
			t.Fatalf("unexpected meter name %q", sm.Scope.Name)
		}
		for _, md := range sm.Metrics {
			seen[md.Name] = true
		}
	}
	for _, name := range []string{
		"wadesk_usage_aggregations_total",
		"wadesk_usage_current_queries_total",
		"wadesk_usage_reports_total",
		"wadesk_usage_quota_exceeded_total",
		"wadesk_usage_aggregation_duration_seconds",
	} {
		if !seen[name] {
			t.Errorf("instrument %s was not recorded", name)
		}
	}
}
