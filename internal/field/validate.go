package field

import (
	"fmt"

	"github.com/roach88/selectapi/internal/apierr"
)

// Validate checks that v is an acceptable value for this field.
// Nil is always accepted; Required is enforced by the write path.
func (s *Spec) Validate(v any) error {
	if v == nil {
		return nil
	}
	switch s.Kind {
	case Boolean:
		if _, ok := v.(bool); !ok {
			return s.typeError(v)
		}
	case Long:
		if _, ok := ToInt64(v); !ok {
			return s.typeError(v)
		}
	case Integer:
		if _, isString := v.(string); isString {
			return s.typeError(v)
		}
		if _, ok := ToInt64(v); !ok {
			return s.typeError(v)
		}
	case Float:
		switch v.(type) {
		case float32, float64:
		case string:
			return s.typeError(v)
		default:
			if _, ok := ToInt64(v); !ok {
				return s.typeError(v)
			}
		}
	case String:
		if _, ok := v.(string); !ok {
			return s.typeError(v)
		}
	case Timestamp:
		if _, ok := ToTime(v); !ok {
			return s.typeError(v)
		}
	case Array:
		items, ok := toSlice(v)
		if !ok {
			return s.typeError(v)
		}
		if s.Elem != nil {
			for _, item := range items {
				if err := s.Elem.Validate(item); err != nil {
					return err
				}
			}
		}
	case Object, Nested:
		m, ok := v.(map[string]any)
		if !ok {
			return s.typeError(v)
		}
		if s.Kind == Object {
			for k, item := range m {
				if s.Key != nil {
					if err := s.Key.Validate(k); err != nil {
						return err
					}
				}
				if s.Elem != nil {
					if err := s.Elem.Validate(item); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (s *Spec) typeError(v any) error {
	return &apierr.Error{
		Code:    apierr.CodeValidation,
		Message: fmt.Sprintf("invalid type '%T' for field '%s'", v, s.Name),
		Field:   s.Name,
	}
}
