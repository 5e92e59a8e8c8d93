package query

import (
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
)

// SplitTerms splits a selection into its depth-0 terms.
//
// Commas inside parentheses do not split. A depth-0 slash ends splitting: the
// rest of the input belongs to the current term. Empty terms are dropped.
// Unbalanced parentheses are a validation error.
func SplitTerms(sel string) ([]string, error) {
	var (
		terms []string
		depth int
		start int
	)
	emit := func(end int) {
		if t := strings.TrimSpace(sel[start:end]); t != "" {
			terms = append(terms, t)
		}
	}

	for i := 0; i < len(sel); i++ {
		switch sel[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, apierr.Validation("unbalanced parentheses in selection %q", sel)
			}
		case ',':
			if depth == 0 {
				emit(i)
				start = i + 1
			}
		case '/':
			if depth == 0 {
				emit(len(sel))
				return terms, nil
			}
		}
	}
	if depth != 0 {
		return nil, apierr.Validation("unbalanced parentheses in selection %q", sel)
	}
	emit(len(sel))
	return terms, nil
}
