package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	"github.com/creditera/cobranza/internal/config"
	"github.com/creditera/cobranza/internal/migration"
	"github.com/creditera/cobranza/internal/observability"
	"github.com/creditera/cobranza/internal/scheduler"
	"github.com/creditera/cobranza/internal/server"
	"github.com/creditera/cobranza/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain modules and HTTP surface
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
