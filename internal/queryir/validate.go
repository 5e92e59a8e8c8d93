package queryir

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

var fieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidationResult contains the outcome of checking a query.
type ValidationResult struct {
	// Errors lists problems that make the query impossible to compile.
	Errors []string

	// Warnings lists legal but suspicious constructs, such as an empty In.
	Warnings []string
}

// OK reports whether the query can be compiled.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err returns the first error as an error value, or nil.
func (r ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("invalid query: %s", r.Errors[0])
}

// Validate checks a query against the rules every backend relies on:
//  1. A model name is present
//  2. Field paths are dotted identifiers
//  3. Values are scalars (string, bool, integer, float, time)
//  4. Limit and offset are non-negative
//
// Validate is a pure function with no side effects.
func Validate(q Query) ValidationResult {
	v := &validator{}
	v.validateQuery(q)
	return ValidationResult{Errors: v.errors, Warnings: v.warnings}
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) fail(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) warn(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case nil:
		v.fail("nil query")
	default:
		v.fail("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Model == "" {
		v.fail("select without model")
	}
	if sel.Limit < 0 {
		v.fail("negative limit %d", sel.Limit)
	}
	if sel.Offset < 0 {
		v.fail("negative offset %d", sel.Offset)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateField(pred.Field)
		if pred.Value != nil {
			v.validateValue(pred.Field, pred.Value)
		}
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.validateField(pred.Field)
		if len(pred.Values) == 0 {
			v.warn("field '%s' compared to an empty set - matches nothing", pred.Field)
		}
		for _, val := range pred.Values {
			if val == nil {
				v.warn("field '%s' set contains null - never matches", pred.Field)
				continue
			}
			v.validateValue(pred.Field, val)
		}
	case *In:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	case nil:
	default:
		v.fail("unknown predicate type %T", p)
	}
}

func (v *validator) validateField(path string) {
	if !fieldPath.MatchString(path) {
		v.fail("invalid field path %q", path)
	}
}

func (v *validator) validateValue(field string, val any) {
	switch val.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint8, uint16, uint32, float32, float64, json.Number, time.Time:
	default:
		v.fail("field '%s' compared to non-scalar %T", field, val)
	}
}
