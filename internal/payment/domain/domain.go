package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SettlementState is the processor's terminal verdict for a payment as
// reported by its status endpoint.
type SettlementState string

const (
	SettlementSettled   SettlementState = "settled"
	SettlementFailed    SettlementState = "failed"
	SettlementAbandoned SettlementState = "abandoned"
)

// EventStatusUpdated is the only callback event the reconciler acts on.
const EventStatusUpdated = "status_updated"

// Checkout is a hosted payment session created at the processor.
type Checkout struct {
	PaymentReference string
	PaymentLink      string
}

// Gateway talks to the payment processor. Callback parameters are never
// trusted for state; FetchStatus is the single source of truth.
type Gateway interface {
	CreateCheckout(ctx context.Context, orderReference string, amount decimal.Decimal, email string) (*Checkout, error)
	FetchStatus(ctx context.Context, paymentReference string) (SettlementState, error)
}

var (
	// ErrUnknownEvent marks callback events other than status_updated;
	// they are acknowledged but ignored.
	ErrUnknownEvent = errors.New("unknown payment event")

	// ErrMissingParams marks callbacks without the required identifiers.
	ErrMissingParams = errors.New("missing callback parameters")
)

// UnknownSettlementStateError reports a processor status this service
// does not understand. The order is left untouched.
type UnknownSettlementStateError struct {
	State string
}

func (e *UnknownSettlementStateError) Error() string {
	return fmt.Sprintf("unknown settlement state %q", e.State)
}

// GatewayError wraps a processor transport or protocol failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
