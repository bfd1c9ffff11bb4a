package balta

import (
	"fmt"
	"strconv"

	"github.com/nordbroker/octasure/internal/insurer/domain"
)

// Balta encodes policy terms as a bare month count in both directions.

// EncodePeriod maps a canonical term to Balta's wire encoding.
func EncodePeriod(months int) (string, error) {
	if !domain.ValidTerm(months) {
		return "", fmt.Errorf("unsupported policy term: %d months", months)
	}
	return strconv.Itoa(months), nil
}

// DecodePeriod maps Balta's wire encoding back to a canonical term.
func DecodePeriod(period string) (int, error) {
	months, err := strconv.Atoi(period)
	if err != nil || !domain.ValidTerm(months) {
		return 0, fmt.Errorf("unsupported period encoding: %q", period)
	}
	return months, nil
}
