package db

import (
	"testing"

	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectSelectsDriver(t *testing.T) {
	cases := map[string]string{
		"postgres": "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite",
		"Postgres": "postgres",
	}
	for dbType, want := range cases {
		d, err := Dialect(config.Config{DBType: dbType, DBPath: ":memory:"})
		require.NoError(t, err, dbType)
		assert.Equal(t, want, d.Name(), dbType)
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestDSNs(t *testing.T) {
	cfg := config.Config{
		DBHost:     "db.internal",
		DBPort:     "5432",
		DBUser:     "wadesk",
		DBPassword: "secret",
		DBName:     "usage",
	}
	assert.Equal(t, "host=db.internal port=5432 user=wadesk password=secret dbname=usage sslmode=disable TimeZone=UTC", postgresDSN(cfg))

	cfg.DBPort = "3306"
	assert.Equal(t, "wadesk:secret@tcp(db.internal:3306)/usage?charset=utf8mb4&parseTime=True&loc=UTC", mysqlDSN(cfg))

	cfg.DBURL = "postgres://u:p@h/db"
	assert.Equal(t, cfg.DBURL, postgresDSN(cfg))
	assert.Equal(t, cfg.DBURL, mysqlDSN(cfg))
}
