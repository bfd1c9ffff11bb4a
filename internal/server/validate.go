package server

import (
	"regexp"
	"strings"

	insurerdomain "github.com/nordbroker/octasure/internal/insurer/domain"
)

// ValidationError reports malformed caller input. It never reaches a
// provider; validation runs before any outbound call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

const certNumberLength = 9

var (
	emailPattern       = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	countryCodePattern = regexp.MustCompile(`^[0-9]{1,4}$`)
	phonePattern       = regexp.MustCompile(`^[0-9]{4,14}$`)
)

func (s *Server) vehicleFromRequest(reg, vin string) (*insurerdomain.Vehicle, error) {
	reg = strings.TrimSpace(reg)
	vin = strings.TrimSpace(vin)
	if reg == "" {
		return nil, &ValidationError{Field: "reg", Message: "registration number is required"}
	}
	if len(reg) > 10 {
		return nil, &ValidationError{Field: "reg", Message: "registration number is too long"}
	}
	if len(vin) != certNumberLength {
		return nil, &ValidationError{Field: "vin", Message: "certificate number must be 9 characters"}
	}
	return &insurerdomain.Vehicle{RegNumber: reg, CertNumber: vin}, nil
}

func (s *Server) validateCheckout(req *checkoutRequest) error {
	if _, err := s.vehicleFromRequest(req.CarData.Reg, req.CarData.Vin); err != nil {
		return err
	}
	if !emailPattern.MatchString(req.Email) {
		return &ValidationError{Field: "email", Message: "invalid email address"}
	}
	if !countryCodePattern.MatchString(req.Phone.CountryCode) {
		return &ValidationError{Field: "phone.countryCode", Message: "country code must be 1 to 4 digits"}
	}
	if !phonePattern.MatchString(req.Phone.Number) {
		return &ValidationError{Field: "phone.number", Message: "phone number must be 4 to 14 digits"}
	}
	if !s.registry.Exists(req.SelectedOfferID) {
		return &ValidationError{Field: "selectedOfferId", Message: "unknown insurance provider"}
	}
	if !insurerdomain.ValidTerm(req.TermMonths) {
		return &ValidationError{Field: "termMonths", Message: "term must be one of 1, 3, 6, 9 or 12 months"}
	}
	return nil
}
