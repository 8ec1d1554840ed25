package observability

import (
	"strings"

	"github.com/smallbiznis/wadesk/internal/config"
)

const defaultServiceName = "wadesk"

// Config is the observability slice of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log  LogConfig
	Otel OtelConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type OtelConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.OTLPProtocol))
	if protocol != "http" {
		protocol = "grpc"
	}

	ratio := cfg.OTLPSamplingRatio
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}

	return Config{
		ServiceName: serviceName,
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(cfg.LogLevel)),
			Format: strings.ToLower(strings.TrimSpace(cfg.LogFormat)),
		},
		Otel: OtelConfig{
			Enabled:       cfg.OTLPEnabled && strings.TrimSpace(cfg.OTLPEndpoint) != "",
			Endpoint:      strings.TrimSpace(cfg.OTLPEndpoint),
			Protocol:      protocol,
			SamplingRatio: ratio,
		},
	}
}

// Debug reports whether request logs should carry error detail.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
