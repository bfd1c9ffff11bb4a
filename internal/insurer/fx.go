package insurer

import (
	"fmt"

	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/insurer/adapters"
	"github.com/nordbroker/octasure/internal/insurer/adapters/balcia"
	"github.com/nordbroker/octasure/internal/insurer/adapters/balta"
	"github.com/nordbroker/octasure/internal/insurer/adapters/ergo"
	"github.com/nordbroker/octasure/internal/insurer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("insurer",
	fx.Provide(NewRegistry),
)

// NewRegistry builds the adapter table from the configured provider list.
// Unknown ids fail startup; they are never discovered lazily.
func NewRegistry(cfg config.Config, clk clock.Clock, log *zap.Logger) (*adapters.Registry, error) {
	list := make([]domain.Adapter, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		switch provider {
		case "balcia":
			list = append(list, balcia.New(balcia.Config{
				URL:      cfg.Balcia.URL,
				Username: cfg.Balcia.Username,
				Password: cfg.Balcia.Password,
			}, log))
		case "balta":
			adapter, err := balta.New(balta.Config{
				URL:      cfg.Balta.URL,
				CertFile: cfg.Balta.CertFile,
				KeyFile:  cfg.Balta.KeyFile,
			}, clk, log)
			if err != nil {
				return nil, err
			}
			list = append(list, adapter)
		case "ergo":
			list = append(list, ergo.New(ergo.Config{
				URL:      cfg.Ergo.URL,
				Username: cfg.Ergo.Username,
				Password: cfg.Ergo.Password,
			}, log))
		default:
			return nil, fmt.Errorf("unknown insurance provider %q in configuration", provider)
		}
	}
	return adapters.NewRegistry(list...), nil
}
