package db

import (
	"fmt"
	"net"
	"strings"

	"github.com/smallbiznis/wadesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLitePath = "wadesk.db"

// Dialect picks the gorm driver for cfg.DBType. Every connection is pinned
// to UTC so stored day boundaries compare as instants.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case "postgres":
		return postgres.Open(postgresDSN(cfg)), nil
	case "mysql":
		return mysql.Open(mysqlDSN(cfg)), nil
	case "sqlite":
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = defaultSQLitePath
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func postgresDSN(cfg config.Config) string {
	if cfg.DBURL != "" {
		return cfg.DBURL
	}
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode)
}

func mysqlDSN(cfg config.Config) string {
	if cfg.DBURL != "" {
		return cfg.DBURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, net.JoinHostPort(cfg.DBHost, cfg.DBPort), cfg.DBName)
}
