package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/insurer"
	"github.com/nordbroker/octasure/internal/issuance"
	"github.com/nordbroker/octasure/internal/migration"
	"github.com/nordbroker/octasure/internal/observability"
	"github.com/nordbroker/octasure/internal/order/repository"
	"github.com/nordbroker/octasure/internal/payment/checkout"
	"github.com/nordbroker/octasure/internal/payment/gateway"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"github.com/nordbroker/octasure/internal/quote"
	"github.com/nordbroker/octasure/internal/server"
	"github.com/nordbroker/octasure/internal/sweeper"
	"github.com/nordbroker/octasure/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// functional domains
		insurer.Module,
		quote.Module,
		repository.Module,
		issuance.Module,
		gateway.Module,
		checkout.Module,
		webhook.Module,
		sweeper.Module,

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
