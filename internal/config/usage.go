package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// UsageConfig controls the daily usage rollup worker.
type UsageConfig struct {
	RollupEnabled      bool          `mapstructure:"rollupEnabled"`
	PollInterval       time.Duration `mapstructure:"pollInterval"`
	BatchSize          int           `mapstructure:"batchSize"`
	RunTimeout         time.Duration `mapstructure:"runTimeout"`
	TenantTimeout      time.Duration `mapstructure:"tenantTimeout"`
	IncludePreviousDay bool          `mapstructure:"includePreviousDay"`
	LockTTL            time.Duration `mapstructure:"lockTTL"`
}

func DefaultUsageConfig() UsageConfig {
	return UsageConfig{
		RollupEnabled:      true,
		PollInterval:       15 * time.Minute,
		BatchSize:          100,
		RunTimeout:         10 * time.Minute,
		TenantTimeout:      5 * time.Second,
		IncludePreviousDay: true,
		LockTTL:            15 * time.Minute,
	}
}

type UsageConfigHolder struct {
	log     *zap.Logger
	current atomic.Value // holds UsageConfig
}

func NewUsageConfigHolder(log *zap.Logger) (*UsageConfigHolder, error) {
	return newUsageConfigHolder(log, "/etc/wadesk", ".")
}

func newUsageConfigHolder(log *zap.Logger, paths ...string) (*UsageConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()

	v.SetConfigName("usage")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("WADESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultUsageConfig()
	v.SetDefault("usage.rollupEnabled", defaults.RollupEnabled)
	v.SetDefault("usage.pollInterval", defaults.PollInterval)
	v.SetDefault("usage.batchSize", defaults.BatchSize)
	v.SetDefault("usage.runTimeout", defaults.RunTimeout)
	v.SetDefault("usage.tenantTimeout", defaults.TenantTimeout)
	v.SetDefault("usage.includePreviousDay", defaults.IncludePreviousDay)
	v.SetDefault("usage.lockTTL", defaults.LockTTL)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg UsageConfig
	if err := v.UnmarshalKey("usage", &cfg); err != nil {
		return nil, err
	}
	if err := validateUsageConfig(cfg); err != nil {
		return nil, err
	}

	holder := &UsageConfigHolder{log: log.Named("usage.config")}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			holder.reload(v, e.Name)
		})
	}

	return holder, nil
}

// reload swaps in the watched file's usage section. An invalid section keeps
// the previous configuration.
func (h *UsageConfigHolder) reload(v *viper.Viper, source string) {
	var updated UsageConfig
	if err := v.UnmarshalKey("usage", &updated); err != nil {
		h.log.Warn("usage config reload failed", zap.String("file", source), zap.Error(err))
		return
	}
	if err := validateUsageConfig(updated); err != nil {
		h.log.Warn("invalid usage config ignored", zap.String("file", source), zap.Error(err))
		return
	}
	h.current.Store(updated)
	h.log.Info("usage config reloaded", zap.String("file", source))
}

// NewStaticUsageConfigHolder wraps a fixed configuration.
func NewStaticUsageConfigHolder(cfg UsageConfig) *UsageConfigHolder {
	holder := &UsageConfigHolder{log: zap.NewNop()}
	holder.current.Store(cfg)
	return holder
}

func (h *UsageConfigHolder) Get() UsageConfig {
	if h == nil {
		return DefaultUsageConfig()
	}
	cfg, ok := h.current.Load().(UsageConfig)
	if !ok {
		return DefaultUsageConfig()
	}
	return cfg
}

func validateUsageConfig(cfg UsageConfig) error {
	if cfg.PollInterval <= 0 {
		return errors.New("usage.pollInterval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("usage.batchSize must be positive")
	}
	if cfg.RunTimeout <= 0 {
		return errors.New("usage.runTimeout must be positive")
	}
	if cfg.TenantTimeout <= 0 {
		return errors.New("usage.tenantTimeout must be positive")
	}
	return nil
}
