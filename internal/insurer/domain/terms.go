package domain

// TermMonths is the canonical policy term enumeration exposed to callers.
// Each adapter owns its own bidirectional mapping between these keys and
// the insurer's native encoding.
var TermMonths = []int{1, 3, 6, 9, 12}

// ValidTerm reports whether months is one of the canonical policy terms.
func ValidTerm(months int) bool {
	switch months {
	case 1, 3, 6, 9, 12:
		return true
	}
	return false
}
