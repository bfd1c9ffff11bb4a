package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no order matches the lookup key.
	ErrNotFound = errors.New("order not found")

	// ErrStaleOrder is returned when a save lost the version race and the
	// caller must reload before retrying.
	ErrStaleOrder = errors.New("order was modified concurrently")

	// ErrPaymentReferenceSet guards against a second checkout session being
	// attached to the same order.
	ErrPaymentReferenceSet = errors.New("payment reference already set")
)

// InvalidTransitionError reports a rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}
