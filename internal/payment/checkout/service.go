package checkout

import (
	"context"
	"fmt"

	"github.com/nordbroker/octasure/internal/clock"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/nordbroker/octasure/internal/issuance"
	obsmetrics "github.com/nordbroker/octasure/internal/observability/metrics"
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/internal/order/repository"
	paymentdomain "github.com/nordbroker/octasure/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Issuance *issuance.Service
	Orders   *repository.Repository
	Gateway  paymentdomain.Gateway
	Clock    clock.Clock
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Log      *zap.Logger
}

// Service drives a purchase up to the hosted payment page: reserve the
// offer with the insurer, persist the order, open the checkout session.
type Service struct {
	issuance *issuance.Service
	orders   *repository.Repository
	gateway  paymentdomain.Gateway
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
	log      *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		issuance: p.Issuance,
		orders:   p.Orders,
		gateway:  p.Gateway,
		clock:    p.Clock,
		metrics:  p.Metrics,
		log:      p.Log.Named("payment.checkout"),
	}
}

// Result is what the caller needs to send the customer to the processor.
type Result struct {
	Order       *orderdomain.Order
	PaymentLink string
}

// Start reserves the offer and opens the payment session. When the
// session cannot be opened the order stays in created; a later retry
// reserves a fresh offer rather than reusing this one.
func (s *Service) Start(ctx context.Context, providerID string, vehicle insurerdomain.Vehicle, holder insurerdomain.Holder, termMonths int) (*Result, error) {
	order, err := s.issuance.Reserve(ctx, providerID, vehicle, holder, termMonths)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, order.ID.String(), order.Premium, order.Email)
	if err != nil {
		s.log.Error("checkout session failed, order left in created",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := order.InitiateCheckout(session.PaymentReference, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist checkout: %w", err)
	}

	s.metrics.IncCheckoutCreated()
	s.log.Info("checkout started",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", providerID),
		zap.String("payment_reference", session.PaymentReference),
	)
	return &Result{Order: order, PaymentLink: session.PaymentLink}, nil
}

var Module = fx.Module("payment.checkout",
	fx.Provide(New),
)
