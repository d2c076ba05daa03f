package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/medsera/returns/internal/clock"
	"github.com/medsera/returns/internal/config"
	"github.com/medsera/returns/internal/migration"
	"github.com/medsera/returns/internal/observability"
	"github.com/medsera/returns/internal/server"
	"github.com/medsera/returns/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
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
