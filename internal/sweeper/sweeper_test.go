package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/nordbroker/octasure/internal/clock"
	"github.com/nordbroker/octasure/internal/config"
	"github.com/nordbroker/octasure/internal/insurer/adapters"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/nordbroker/octasure/internal/issuance"
	orderdomain "github.com/nordbroker/octasure/internal/order/domain"
	"github.com/nordbroker/octasure/internal/order/repository"
	paymentdomain "github.com/nordbroker/octasure/internal/payment/domain"
	"github.com/nordbroker/octasure/internal/payment/webhook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sweepAdapter struct{}

func (sweepAdapter) Provider() string { return "stub" }

func (sweepAdapter) GetPricing(ctx context.Context, vehicle insurerdomain.Vehicle) (*insurerdomain.Quote, error) {
	return &insurerdomain.Quote{Provider: "stub"}, nil
}

func (sweepAdapter) ReserveOffer(ctx context.Context, vehicle insurerdomain.Vehicle, termMonths int) (*insurerdomain.Reservation, error) {
	return &insurerdomain.Reservation{OfferID: "OFFER-1", Premium: decimal.NewFromInt(20)}, nil
}

func (sweepAdapter) ConcludeOffer(ctx context.Context, offerID string, vehicle insurerdomain.Vehicle, holder insurerdomain.Holder, termMonths int) (string, error) {
	return "POL-SWEEP", nil
}

type sweepGateway struct {
	states map[string]paymentdomain.SettlementState
}

func (g *sweepGateway) CreateCheckout(ctx context.Context, orderReference string, amount decimal.Decimal, email string) (*paymentdomain.Checkout, error) {
	return nil, nil
}

func (g *sweepGateway) FetchStatus(ctx context.Context, paymentReference string) (paymentdomain.SettlementState, error) {
	state, ok := g.states[paymentReference]
	if !ok {
		return "", &paymentdomain.UnknownSettlementStateError{State: "missing"}
	}
	return state, nil
}

func TestSweepResyncsOnlyStaleCheckouts(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orderdomain.Order{}, &orderdomain.StatusEntry{}, &webhook.EventRecord{}))

	log := zap.NewNop()
	orders := repository.New(repository.Params{DB: db, Log: log})
	registry := adapters.NewRegistry(sweepAdapter{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	issuanceSvc := issuance.New(issuance.Params{Registry: registry, Orders: orders, Node: node, Clock: clk, Log: log})
	gw := &sweepGateway{states: map[string]paymentdomain.SettlementState{
		"pr-old-settled":   paymentdomain.SettlementSettled,
		"pr-old-abandoned": paymentdomain.SettlementAbandoned,
		"pr-fresh":         paymentdomain.SettlementSettled,
	}}
	reconciler := webhook.New(webhook.Params{
		Orders: orders, Gateway: gw, Issuance: issuanceSvc, Clock: clk, DB: db, Log: log,
	})

	seed := func(ref string) *orderdomain.Order {
		order := orderdomain.New(
			node.Generate(), "stub",
			insurerdomain.Reservation{OfferID: "OFFER-1", Premium: decimal.NewFromInt(20)},
			insurerdomain.Vehicle{RegNumber: "BJ8614", CertNumber: "AF2984030"},
			insurerdomain.Holder{Email: "driver@example.com", Phone: insurerdomain.Phone{CountryCode: "371", Number: "26112233"}},
			1,
			clk.Now(),
		)
		require.NoError(t, orders.Create(context.Background(), order))
		require.NoError(t, order.InitiateCheckout(ref, clk.Now()))
		require.NoError(t, orders.Save(context.Background(), order))
		return order
	}

	settled := seed("pr-old-settled")
	abandoned := seed("pr-old-abandoned")

	// these two become stale, the third starts checkout just before the sweep
	clk.Advance(30 * time.Minute)
	fresh := seed("pr-fresh")

	sweeper := New(Params{
		Config:     config.Config{SweepInterval: time.Minute, SweepMinAge: 15 * time.Minute, SweepBatchSize: 10},
		Orders:     orders,
		Reconciler: reconciler,
		Clock:      clk,
		Log:        log,
	})
	sweeper.Sweep(context.Background())

	found, err := orders.FindByID(context.Background(), settled.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPolicyApproved, found.Status)

	found, err = orders.FindByID(context.Background(), abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusFailed, found.Status)

	found, err = orders.FindByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCheckoutInitiated, found.Status)
}
