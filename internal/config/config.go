package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewUsageConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// SnowflakeNodeID must be unique per running replica.
	SnowflakeNodeID int64

	LogLevel  string
	LogFormat string

	OTLPEndpoint      string
	OTLPProtocol      string
	OTLPEnabled       bool
	OTLPSamplingRatio float64

	// UsageTimezone names the reference zone used to cut calendar days
	// for usage aggregation. It must be fixed for the whole deployment.
	UsageTimezone string

	// DBURL, when set, is used as the DSN verbatim for postgres and mysql.
	DBURL             string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AggregateRate and AggregateBurst throttle on-demand aggregation per
	// tenant. They only apply when Redis is configured.
	AggregateRate  float64
	AggregateBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:           getenv("APP_SERVICE", "wadesk"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		SnowflakeNodeID:   int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenv("LOG_FORMAT", "json")),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		OTLPProtocol:      strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OTLPEnabled:       getenvBool("OTEL_ENABLED", strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")) != ""),
		OTLPSamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		UsageTimezone:     strings.TrimSpace(getenv("USAGE_TIMEZONE", "UTC")),
		DBURL:             strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "wadesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "wadesk.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		AggregateRate:     getenvFloat("RATE_LIMIT_AGGREGATE_RATE", 0.2),
		AggregateBurst:    getenvInt("RATE_LIMIT_AGGREGATE_BURST", 5),
	}
}

// Location resolves the usage reference time zone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.UsageTimezone)
	if name == "" {
		name = "UTC"
	}
	return time.LoadLocation(name)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
