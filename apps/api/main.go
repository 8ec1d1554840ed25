package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/wadesk/internal/activity"
	"github.com/smallbiznis/wadesk/internal/clock"
	"github.com/smallbiznis/wadesk/internal/config"
	"github.com/smallbiznis/wadesk/internal/observability"
	"github.com/smallbiznis/wadesk/internal/ratelimit"
	"github.com/smallbiznis/wadesk/internal/server"
	"github.com/smallbiznis/wadesk/internal/usage"
	"github.com/smallbiznis/wadesk/pkg/db"
	"go.uber.org/fx"
)

// The api binary serves dashboard reads and on-demand aggregation only. Run
// apps/rollup alongside it for scheduled aggregation.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,

		activity.Module,
		usage.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNodeID)
}
