package ergo

import "fmt"

// ERGO returns offer variants as an ordered list; the position of a
// variant decides its policy term. variantTerms is that table.
var variantTerms = []int{1, 3, 6, 9, 12}

// IndexForTerm maps a canonical term to the variant position ERGO expects.
func IndexForTerm(months int) (int, error) {
	for index, term := range variantTerms {
		if term == months {
			return index, nil
		}
	}
	return 0, fmt.Errorf("unsupported policy term: %d months", months)
}

// TermForIndex maps a variant position back to the canonical term.
func TermForIndex(index int) (int, error) {
	if index < 0 || index >= len(variantTerms) {
		return 0, fmt.Errorf("unsupported variant index: %d", index)
	}
	return variantTerms[index], nil
}
