package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. Transitions are monotonic:
//
//	created -> checkout_initiated -> paid -> policy_approved
//
// with failed reachable from checkout_initiated and paid. policy_approved
// and failed are terminal.
type Status string

const (
	StatusCreated           Status = "created"
	StatusCheckoutInitiated Status = "checkout_initiated"
	StatusPaid              Status = "paid"
	StatusPolicyApproved    Status = "policy_approved"
	StatusFailed            Status = "failed"
)

var allowedTransitions = map[Status][]Status{
	StatusCreated:           {StatusCheckoutInitiated},
	StatusCheckoutInitiated: {StatusPaid, StatusFailed},
	StatusPaid:              {StatusPolicyApproved, StatusFailed},
}

// Terminal reports whether no further transition can leave the status.
func (s Status) Terminal() bool {
	return s == StatusPolicyApproved || s == StatusFailed
}

func (s Status) canTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusEntry is one row of an order's append-only status history.
type StatusEntry struct {
	ID        uint         `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   snowflake.ID `json:"-" gorm:"index;not null"`
	Status    Status       `json:"status" gorm:"type:text;not null"`
	Note      string       `json:"note" gorm:"type:text"`
	CreatedAt time.Time    `json:"timestamp" gorm:"not null"`
}

func (StatusEntry) TableName() string { return "order_status_history" }

// Order is the durable purchase aggregate. Its id doubles as the order
// reference handed to the payment processor. Every mutation goes through
// a transition method; nothing else touches state.
type Order struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	Provider         string          `json:"provider" gorm:"type:text;not null"`
	Premium          decimal.Decimal `json:"premium" gorm:"type:numeric(12,2);not null"`
	RegNumber        string          `json:"reg" gorm:"type:text;not null"`
	CertNumber       string          `json:"vin" gorm:"type:text;not null"`
	Email            string          `json:"email" gorm:"type:text;not null"`
	PhoneCountryCode string          `json:"phone_country_code" gorm:"type:text;not null"`
	PhoneNumber      string          `json:"phone_number" gorm:"type:text;not null"`
	TermMonths       int             `json:"term_months" gorm:"not null"`
	ProviderOfferID  string          `json:"provider_offer_id" gorm:"type:text;not null"`
	PolicyID         *string         `json:"policy_id" gorm:"type:text"`
	PaymentReference *string         `json:"payment_reference" gorm:"type:text;uniqueIndex"`
	Status           Status          `json:"status" gorm:"type:text;not null"`
	History          []StatusEntry   `json:"history" gorm:"foreignKey:OrderID"`

	CheckoutInitiatedAt *time.Time `json:"checkout_initiated_at"`
	PaidAt              *time.Time `json:"paid_at"`
	PolicyApprovedAt    *time.Time `json:"policy_approved_at"`

	// Version backs the repository's compare-and-save; concurrent
	// transitions on the same order never interleave.
	Version   int       `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// New creates an order for a reservation that already succeeded. Orders
// are never created for failed reservations.
func New(id snowflake.ID, provider string, reservation insurerdomain.Reservation, vehicle insurerdomain.Vehicle, holder insurerdomain.Holder, termMonths int, now time.Time) *Order {
	order := &Order{
		ID:               id,
		Provider:         provider,
		Premium:          reservation.Premium,
		RegNumber:        vehicle.RegNumber,
		CertNumber:       vehicle.CertNumber,
		Email:            holder.Email,
		PhoneCountryCode: holder.Phone.CountryCode,
		PhoneNumber:      holder.Phone.Number,
		TermMonths:       termMonths,
		ProviderOfferID:  reservation.OfferID,
		Status:           StatusCreated,
	}
	order.History = append(order.History, StatusEntry{
		OrderID:   id,
		Status:    StatusCreated,
		Note:      "order created for offer " + reservation.OfferID,
		CreatedAt: now,
	})
	return order
}

// InitiateCheckout records the hosted checkout session. The payment
// reference is set exactly once, here.
func (o *Order) InitiateCheckout(paymentReference string, now time.Time) error {
	if o.PaymentReference != nil {
		return ErrPaymentReferenceSet
	}
	if err := o.transition(StatusCheckoutInitiated, "checkout initiated with payment reference "+paymentReference, now); err != nil {
		return err
	}
	o.PaymentReference = &paymentReference
	o.CheckoutInitiatedAt = firstOf(o.CheckoutInitiatedAt, now)
	return nil
}

// MarkPaid records a settled payment.
func (o *Order) MarkPaid(now time.Time) error {
	if err := o.transition(StatusPaid, "payment settled", now); err != nil {
		return err
	}
	o.PaidAt = firstOf(o.PaidAt, now)
	return nil
}

// ApprovePolicy records the issued policy. The policy id is set only on
// entering policy_approved.
func (o *Order) ApprovePolicy(policyID string, now time.Time) error {
	if err := o.transition(StatusPolicyApproved, "policy approved with id "+policyID, now); err != nil {
		return err
	}
	o.PolicyID = &policyID
	o.PolicyApprovedAt = firstOf(o.PolicyApprovedAt, now)
	return nil
}

// Fail moves the order to its failed terminal state with the reason kept
// in history.
func (o *Order) Fail(reason string, now time.Time) error {
	return o.transition(StatusFailed, reason, now)
}

// transition is the only path that changes status; it appends exactly one
// history entry per applied change.
func (o *Order) transition(next Status, note string, now time.Time) error {
	if !o.Status.canTransitionTo(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.History = append(o.History, StatusEntry{
		OrderID:   o.ID,
		Status:    next,
		Note:      note,
		CreatedAt: now,
	})
	return nil
}

func firstOf(existing *time.Time, now time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return &now
}
