package db

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/smallbiznis/wadesk/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(Open),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// Open connects to the configured database and installs the zap logger,
// otel tracing and prometheus pool metrics.
func Open(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.NewGormLogger(p.Log, logger.DefaultGormLoggerConfig()),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", p.Config.DBType, err)
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.DBName))); err != nil {
		return nil, fmt.Errorf("install otelgorm: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          p.Config.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, fmt.Errorf("install gorm prometheus: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if p.Config.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(p.Config.DBMaxOpenConn)
	}
	if p.Config.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(p.Config.DBMaxIdleConn)
	}
	if p.Config.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.Config.DBConnMaxLifetime) * time.Second)
	}
	if p.Config.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.DBConnMaxIdleTime) * time.Second)
	}

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return sqlDB.PingContext(ctx)
			},
			OnStop: func(context.Context) error {
				return sqlDB.Close()
			},
		})
	}

	p.Log.Named("db").Info("database configured",
		zap.String("type", p.Config.DBType),
		zap.String("name", p.Config.DBName),
	)
	return conn, nil
}
