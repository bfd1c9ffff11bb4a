package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/issuance"
	obsmetrics "github.com/nordbroker/octasure/internal/observability/metrics"
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/internal/order/repository"
	paymentdomain "github.com/nordbroker/octasure/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrReferenceMismatch marks a callback whose order reference does not
// belong to the payment reference it carries.
var ErrReferenceMismatch = errors.New("order reference does not match payment reference")

// Delivery is one callback from the payment processor. Its fields are
// identifiers only; the actual payment state is always re-fetched.
type Delivery struct {
	PaymentReference string `json:"payment_reference"`
	OrderReference   string `json:"order_reference"`
	EventName        string `json:"event_name"`
}

type Params struct {
	fx.In

	Orders   *repository.Repository
	Gateway  paymentdomain.Gateway
	Issuance *issuance.Service
	Clock    clock.Clock
	DB       *gorm.DB
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Log      *zap.Logger
}

// Service reconciles processor callbacks with order state. Work is
// serialized per order, state is re-read under the lock, and every
// delivery is idempotent: redelivering a settled notification to a paid
// or terminal order changes nothing.
type Service struct {
	orders   *repository.Repository
	gateway  paymentdomain.Gateway
	issuance *issuance.Service
	clock    clock.Clock
	db       *gorm.DB
	metrics  *obsmetrics.Metrics
	log      *zap.Logger
	locks    *keyedMutex
}

func New(p Params) *Service {
	return &Service{
		orders:   p.Orders,
		gateway:  p.Gateway,
		issuance: p.Issuance,
		clock:    p.Clock,
		db:       p.DB,
		metrics:  p.Metrics,
		log:      p.Log.Named("payment.webhook"),
		locks:    newKeyedMutex(),
	}
}

// Reconcile processes one callback delivery.
func (s *Service) Reconcile(ctx context.Context, delivery Delivery) error {
	if delivery.PaymentReference == "" || delivery.OrderReference == "" || delivery.EventName == "" {
		s.record(ctx, nil, delivery, OutcomeError)
		return paymentdomain.ErrMissingParams
	}

	orderID, err := snowflake.ParseString(delivery.OrderReference)
	if err != nil {
		s.record(ctx, nil, delivery, OutcomeError)
		return orderdomain.ErrNotFound
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		s.record(ctx, nil, delivery, OutcomeError)
		return err
	}
	if order.PaymentReference == nil || *order.PaymentReference != delivery.PaymentReference {
		s.record(ctx, &order.ID, delivery, OutcomeError)
		return ErrReferenceMismatch
	}

	if delivery.EventName != paymentdomain.EventStatusUpdated {
		s.record(ctx, &order.ID, delivery, OutcomeIgnored)
		s.log.Info("callback event ignored",
			zap.String("order_id", order.ID.String()),
			zap.String("event_name", delivery.EventName),
		)
		return paymentdomain.ErrUnknownEvent
	}

	return s.resync(ctx, order.ID, delivery)
}

// Resync re-checks one order against the processor without a callback,
// on behalf of the stale checkout sweep.
func (s *Service) Resync(ctx context.Context, order *orderdomain.Order) error {
	if order.PaymentReference == nil {
		return nil
	}
	return s.resync(ctx, order.ID, Delivery{
		PaymentReference: *order.PaymentReference,
		OrderReference:   order.ID.String(),
		EventName:        "sweep",
	})
}

// resync holds the per-order lock, re-reads the order and applies the
// processor's authoritative state to it.
func (s *Service) resync(ctx context.Context, orderID snowflake.ID, delivery Delivery) error {
	s.locks.Lock(orderID)
	defer s.locks.Unlock(orderID)

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		s.record(ctx, &orderID, delivery, OutcomeError)
		return err
	}
	if order.Status.Terminal() {
		s.record(ctx, &orderID, delivery, OutcomeDuplicate)
		return nil
	}

	state, err := s.gateway.FetchStatus(ctx, delivery.PaymentReference)
	if err != nil {
		s.record(ctx, &orderID, delivery, OutcomeError)
		return err
	}

	now := s.clock.Now()
	switch state {
	case paymentdomain.SettlementSettled:
		return s.applySettled(ctx, order, delivery, now)

	case paymentdomain.SettlementFailed:
		if err := order.Fail("payment failed at processor", now); err != nil {
			s.record(ctx, &orderID, delivery, OutcomeError)
			return err
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}
		s.record(ctx, &orderID, delivery, OutcomeFailed)
		return nil

	case paymentdomain.SettlementAbandoned:
		if err := order.Fail("payment abandoned", now); err != nil {
			s.record(ctx, &orderID, delivery, OutcomeError)
			return err
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}
		s.record(ctx, &orderID, delivery, OutcomeAbandoned)
		return nil

	default:
		s.record(ctx, &orderID, delivery, OutcomeError)
		return &paymentdomain.UnknownSettlementStateError{State: string(state)}
	}
}

// applySettled moves the order to paid, then concludes the policy. A
// redelivered settle on an already paid order is a no-op; an issuance
// failure after payment parks the order in failed for manual follow-up
// and acknowledges the delivery.
func (s *Service) applySettled(ctx context.Context, order *orderdomain.Order, delivery Delivery, now time.Time) error {
	if order.Status == orderdomain.StatusPaid {
		s.record(ctx, &order.ID, delivery, OutcomeDuplicate)
		return nil
	}

	if err := order.MarkPaid(now); err != nil {
		s.record(ctx, &order.ID, delivery, OutcomeError)
		return err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}

	policyID, err := s.issuance.Conclude(ctx, order)
	if err != nil {
		s.log.Error("policy issuance failed after settled payment",
			zap.String("order_id", order.ID.String()),
			zap.String("provider", order.Provider),
			zap.Error(err),
		)
		if failErr := order.Fail("policy issuance failed: "+err.Error(), s.clock.Now()); failErr != nil {
			return failErr
		}
		if saveErr := s.orders.Save(ctx, order); saveErr != nil {
			return saveErr
		}
		s.record(ctx, &order.ID, delivery, OutcomeConcludeFailed)
		return nil
	}

	if err := order.ApprovePolicy(policyID, s.clock.Now()); err != nil {
		s.record(ctx, &order.ID, delivery, OutcomeError)
		return err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}
	s.record(ctx, &order.ID, delivery, OutcomeSettled)
	return nil
}

// record appends to the payment event log. The log is best effort; a
// write failure never blocks reconciliation.
func (s *Service) record(ctx context.Context, orderID *snowflake.ID, delivery Delivery, outcome string) {
	s.metrics.IncWebhookEvent(outcome)

	payload, err := json.Marshal(delivery)
	if err != nil {
		payload = nil
	}
	entry := EventRecord{
		OrderID:          orderID,
		PaymentReference: delivery.PaymentReference,
		EventName:        delivery.EventName,
		Outcome:          outcome,
		Payload:          payload,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("payment event log write failed", zap.Error(err))
	}
}

var Module = fx.Module("payment.webhook",
	fx.Provide(New),
)
