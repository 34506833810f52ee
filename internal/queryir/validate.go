package queryir

import (
	"errors"
	"fmt"
)

// ErrNilSort is returned when a View has no sort order.
var ErrNilSort = errors.New("view has no sort order")

// Validate checks that a View can be evaluated by every backend.
//
// Rules:
//  1. Sort must be set
//  2. Contains must name a searchable field
//  3. Contains text must be non-empty (use a nil filter for "match all")
//
// Validate is a pure function with no side effects.
func Validate(v View) error {
	if v.Sort == nil {
		return ErrNilSort
	}
	return validatePredicate(v.Filter)
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Contains:
		if !isSearchable(pred.Field) {
			return fmt.Errorf("field %q is not searchable", pred.Field)
		}
		if pred.Text == "" {
			return fmt.Errorf("empty search text on field %q", pred.Field)
		}
		return nil
	case Or:
		for i, child := range pred.Predicates {
			if child == nil {
				return fmt.Errorf("or[%d]: nil predicate", i)
			}
			if err := validatePredicate(child); err != nil {
				return fmt.Errorf("or[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func isSearchable(f Field) bool {
	for _, sf := range SearchFields {
		if sf == f {
			return true
		}
	}
	return false
}
