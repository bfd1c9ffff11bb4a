package migration

import (
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Run creates the schema on startup so the service is usable out of the
// box for local and self-hosted environments.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.StatusEntry{},
		&webhook.EventRecord{},
	)
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
