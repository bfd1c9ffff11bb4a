package balcia

import (
	"fmt"
	"strconv"

	"github.com/nordbroker/octasure/internal/insurer/domain"
)

// Balcia encodes policy terms as string duration codes on requests and
// answers with month counts on premium rows.
var periodCodes = map[int]string{
	1:  "1MON",
	3:  "3MON",
	6:  "6MON",
	9:  "9MON",
	12: "1YEAR",
}

var periodMonths = map[string]int{
	"1MON":  1,
	"3MON":  3,
	"6MON":  6,
	"9MON":  9,
	"1YEAR": 12,
}

// EncodePeriod maps a canonical term in months to Balcia's duration code.
func EncodePeriod(months int) (string, error) {
	code, ok := periodCodes[months]
	if !ok {
		return "", fmt.Errorf("unsupported policy term: %d months", months)
	}
	return code, nil
}

// DecodePeriod maps Balcia's duration encoding back to months. Premium
// rows carry either the request code or a bare month count.
func DecodePeriod(code string) (int, error) {
	if months, ok := periodMonths[code]; ok {
		return months, nil
	}
	months, err := strconv.Atoi(code)
	if err != nil || !domain.ValidTerm(months) {
		return 0, fmt.Errorf("unsupported period encoding: %q", code)
	}
	return months, nil
}
