package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/wadesk/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string

	// Sampling keeps the first SamplingInitial entries with the same message
	// per SamplingWindow, then one in SamplingThereafter.
	SamplingInitial    int
	SamplingThereafter int
	SamplingWindow     time.Duration

	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and flushes
// it on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	// Sampling is applied below with our own window.
	zapCfg.Sampling = nil

	log, err := zapCfg.Build(buildOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "wadesk"
	}
	log = log.With(
		zap.String("service", service),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(log)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = log.Sync()
		}))
	}
	return log, nil
}

func parseLevel(raw string) (zapcore.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

func buildOptions(cfg Config) []zap.Option {
	var opts []zap.Option
	if cfg.IncludeCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	initial, thereafter, window := cfg.SamplingInitial, cfg.SamplingThereafter, cfg.SamplingWindow
	if initial <= 0 {
		initial = 100
	}
	if thereafter <= 0 {
		thereafter = 100
	}
	if window <= 0 {
		window = time.Second
	}
	opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, window, initial, thereafter)
	}))
	return opts
}

// FromContext returns the global logger with the request's correlation fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext adds request id, tenant id and trace ids carried by ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	var fields []zap.Field
	if id := obscontext.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := obscontext.TenantIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("tenant_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
