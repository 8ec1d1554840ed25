package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wadesk/internal/activity"
	"github.com/smallbiznis/wadesk/internal/clock"
	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/smallbiznis/wadesk/internal/migration"
	"github.com/smallbiznis/wadesk/internal/observability"
	"github.com/smallbiznis/wadesk/internal/ratelimit"
	"github.com/smallbiznis/wadesk/internal/usage"
	"github.com/smallbiznis/wadesk/internal/usage/rollup"
	"github.com/smallbiznis/wadesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		activity.Module,
		usage.Module,
		rollup.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNodeID)
}
