package gateway

import (
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(provideGateway),
)

func provideGateway(cfg config.Config, clk clock.Clock, log *zap.Logger) domain.Gateway {
	return New(Config{
		BaseURL:     cfg.Gateway.BaseURL,
		Username:    cfg.Gateway.Username,
		Secret:      cfg.Gateway.Secret,
		AccountName: cfg.Gateway.AccountName,
		CustomerURL: cfg.Gateway.CustomerURL,
	}, clk, log)
}
