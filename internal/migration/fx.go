package migration

import (
	"strings"

	activitydomain "github.com/smallbiznis/wadesk/internal/activity/domain"
	"github.com/smallbiznis/wadesk/internal/config"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Migrate),
)

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; other dialects fall back to AutoMigrate when enabled.
func Migrate(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migrations")

	if strings.EqualFold(cfg.DBType, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			log.Error("failed to apply migrations", zap.Error(err))
			return err
		}
		log.Info("migrations applied")
		return nil
	}

	if !cfg.DBAutoMigrate {
		log.Info("schema migration skipped", zap.String("db_type", cfg.DBType))
		return nil
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		log.Error("failed to auto migrate schema", zap.String("db_type", cfg.DBType), zap.Error(err))
		return err
	}
	return nil
}

// Models lists every table owned or read by the usage subsystem.
func Models() []any {
	return append(activitydomain.Models(), &usagedomain.UsageRecord{})
}
