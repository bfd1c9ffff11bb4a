package issuance

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/insurer/adapters"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/internal/order/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Registry *adapters.Registry
	Orders   *repository.Repository
	Node     *snowflake.Node
	Clock    clock.Clock
	Log      *zap.Logger
}

// Service owns the insurer side of a purchase: reserving an offer before
// payment and concluding it into a policy after payment.
type Service struct {
	registry *adapters.Registry
	orders   *repository.Repository
	node     *snowflake.Node
	clock    clock.Clock
	log      *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		registry: p.Registry,
		orders:   p.Orders,
		node:     p.Node,
		clock:    p.Clock,
		log:      p.Log.Named("issuance.service"),
	}
}

// Reserve asks the provider to hold an offer and, only once that
// succeeds, creates the order record. A failed reservation leaves no
// trace in storage.
func (s *Service) Reserve(ctx context.Context, providerID string, vehicle insurerdomain.Vehicle, holder insurerdomain.Holder, termMonths int) (*orderdomain.Order, error) {
	adapter, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	reservation, err := adapter.ReserveOffer(ctx, vehicle, termMonths)
	if err != nil {
		return nil, err
	}

	order := orderdomain.New(s.node.Generate(), providerID, *reservation, vehicle, holder, termMonths, s.clock.Now())
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	s.log.Info("offer reserved",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", providerID),
		zap.String("offer_id", reservation.OfferID),
		zap.Int("term_months", termMonths),
	)
	return order, nil
}

// Conclude turns the order's reserved offer into an issued policy and
// returns the policy id. The caller owns the order transition.
func (s *Service) Conclude(ctx context.Context, order *orderdomain.Order) (string, error) {
	adapter, err := s.registry.Get(order.Provider)
	if err != nil {
		return "", err
	}

	vehicle := insurerdomain.Vehicle{RegNumber: order.RegNumber, CertNumber: order.CertNumber}
	holder := insurerdomain.Holder{
		Email: order.Email,
		Phone: insurerdomain.Phone{CountryCode: order.PhoneCountryCode, Number: order.PhoneNumber},
	}
	policyID, err := adapter.ConcludeOffer(ctx, order.ProviderOfferID, vehicle, holder, order.TermMonths)
	if err != nil {
		return "", err
	}

	s.log.Info("policy concluded",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", order.Provider),
		zap.String("policy_id", policyID),
	)
	return policyID, nil
}

var Module = fx.Module("issuance",
	fx.Provide(New),
)
