package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/animegate/internal/audit"
	"github.com/smallbiznis/animegate/internal/authorization"
	"github.com/smallbiznis/animegate/internal/bot"
	"github.com/smallbiznis/animegate/internal/broadcast"
	"github.com/smallbiznis/animegate/internal/catalog"
	"github.com/smallbiznis/animegate/internal/clock"
	"github.com/smallbiznis/animegate/internal/config"
	"github.com/smallbiznis/animegate/internal/gate"
	"github.com/smallbiznis/animegate/internal/ledger"
	"github.com/smallbiznis/animegate/internal/migration"
	"github.com/smallbiznis/animegate/internal/observability"
	"github.com/smallbiznis/animegate/internal/ratelimit"
	"github.com/smallbiznis/animegate/internal/scheduler"
	"github.com/smallbiznis/animegate/internal/server"
	"github.com/smallbiznis/animegate/internal/step"
	"github.com/smallbiznis/animegate/internal/subscription"
	"github.com/smallbiznis/animegate/internal/telegram"
	"github.com/smallbiznis/animegate/internal/user"
	"github.com/smallbiznis/animegate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		authorization.Module,
		audit.Module,
		ledger.Module,
		user.Module,
		step.Module,
		catalog.Module,
		gate.Module,
		subscription.Module,
		broadcast.Module,
		ratelimit.Module,

		// Chat runtime: the dispatcher must be running before intake starts
		bot.Module,
		telegram.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
