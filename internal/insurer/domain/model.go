package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Vehicle identifies the insured vehicle.
type Vehicle struct {
	RegNumber  string `json:"reg"`
	CertNumber string `json:"vin"`
}

// Phone is a customer phone number split the way providers expect it.
type Phone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

// Holder carries the policy holder contact data needed to conclude an offer.
type Holder struct {
	Email string
	Phone Phone
}

// Quote is one insurer's premium table for a vehicle, keyed by policy term
// in months. Quotes are produced per request and never persisted.
type Quote struct {
	Provider string                  `json:"id"`
	Logo     string                  `json:"logo"`
	Prices   map[int]decimal.Decimal `json:"prices"`
}

// Reservation is a provider-side, not-yet-final booking of a policy. The
// OfferID is opaque to everything but the adapter that produced it.
type Reservation struct {
	OfferID string
	Premium decimal.Decimal
}

// Adapter translates the common quoting and issuance contract to one
// insurer's wire protocol. Adapters refresh their own credentials per call
// and own their transport; implementations are safe for concurrent use.
type Adapter interface {
	Provider() string

	// GetPricing obtains the insurer's multi-term premium table.
	GetPricing(ctx context.Context, vehicle Vehicle) (*Quote, error)

	// ReserveOffer performs the insurer's save-without-approving step for
	// the chosen term.
	ReserveOffer(ctx context.Context, vehicle Vehicle, termMonths int) (*Reservation, error)

	// ConcludeOffer converts a reservation into an issued policy and
	// returns the final policy identifier.
	ConcludeOffer(ctx context.Context, offerID string, vehicle Vehicle, holder Holder, termMonths int) (string, error)
}
