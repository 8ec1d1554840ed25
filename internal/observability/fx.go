package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/wadesk/internal/observability/logger"
	"github.com/smallbiznis/wadesk/internal/observability/metrics"
	"github.com/smallbiznis/wadesk/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	loggingModule,
	tracingModule,
	metricsModule,
	fx.Invoke(logStartup),
)

var loggingModule = fx.Options(
	fx.Provide(func(cfg Config) logger.Config {
		return logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.Log.Level,
			Format:              cfg.Log.Format,
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		}
	}),
	fx.Provide(logger.New),
)

var tracingModule = fx.Options(
	fx.Provide(func(cfg Config) tracing.Config {
		return tracing.Config{
			Enabled:          cfg.Otel.Enabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Otel.Endpoint,
			ExporterProtocol: cfg.Otel.Protocol,
			SamplingRatio:    cfg.Otel.SamplingRatio,
		}
	}),
	fx.Provide(tracing.NewProvider),
)

// Usage instruments go through OTLP; HTTP and rollup counters are scraped
// from the default prometheus registry.
var metricsModule = fx.Options(
	fx.Provide(func(cfg Config) metrics.Config {
		return metrics.Config{
			Enabled:          cfg.Otel.Enabled,
			ExporterEndpoint: cfg.Otel.Endpoint,
			ExporterProtocol: cfg.Otel.Protocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		}
	}),
	fx.Provide(metrics.NewProvider),
	fx.Provide(metrics.New),
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.NewRollupMetrics),
)

// logStartup also forces the tracer provider to be built so the global
// propagator and provider are installed before the first request.
func logStartup(cfg Config, log *zap.Logger, _ *sdktrace.TracerProvider) {
	log.Info("observability configured",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("otel_enabled", cfg.Otel.Enabled),
		zap.String("otel_protocol", cfg.Otel.Protocol),
		zap.Float64("otel_sampling_ratio", cfg.Otel.SamplingRatio),
	)
}
