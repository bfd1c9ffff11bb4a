package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Repository persists orders and their status history. Save uses a
// version column compare-and-set so that a concurrent webhook and sweep
// of the same order cannot both win.
type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) *Repository {
	return &Repository{db: p.DB, log: p.Log.Named("order.repository")}
}

func (r *Repository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "payment_reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Save writes the order back under its loaded version. A lost race
// returns ErrStaleOrder; the caller reloads and re-applies its decision.
// New history rows (id zero) are inserted in the same transaction.
func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	loadedVersion := order.Version
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Order{}).
			Where("id = ? AND version = ?", order.ID, loadedVersion).
			Updates(map[string]any{
				"status":                order.Status,
				"policy_id":             order.PolicyID,
				"payment_reference":     order.PaymentReference,
				"checkout_initiated_at": order.CheckoutInitiatedAt,
				"paid_at":               order.PaidAt,
				"policy_approved_at":    order.PolicyApprovedAt,
				"version":               loadedVersion + 1,
				"updated_at":            time.Now().UTC(),
			})
		if result.Error != nil {
			// a duplicate payment reference means a concurrent writer
			// already attached a checkout session to this order
			if db.IsDuplicateKeyErr(result.Error) {
				return domain.ErrStaleOrder
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrStaleOrder
		}
		order.Version = loadedVersion + 1

		for i := range order.History {
			if order.History[i].ID != 0 {
				continue
			}
			if err := tx.Create(&order.History[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindStaleCheckouts lists orders stuck in checkout_initiated longer than
// olderThan, oldest first. The sweeper resyncs each against the processor.
func (r *Repository) FindStaleCheckouts(ctx context.Context, olderThan time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND checkout_initiated_at < ?", domain.StatusCheckoutInitiated, olderThan).
		Order("checkout_initiated_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

var Module = fx.Module("order.repository",
	fx.Provide(New),
)
