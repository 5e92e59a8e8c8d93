package field

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Output formats for timestamp fields.
const (
	// FormatMillis renders epoch milliseconds. It is the default.
	FormatMillis = "ms"

	// FormatISO renders an RFC 3339 string with nanoseconds.
	FormatISO = "iso"

	// FormatUnix renders epoch seconds.
	FormatUnix = "unix"
)

// ISOLayout is the layout used for FormatISO and accepted on input.
const ISOLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Encode converts a resolved value into its client representation.
//
// Longs become decimal strings so clients with 53-bit numbers round-trip them
// exactly. Timestamps honour format. Arrays and objects encode their elements
// with the child specs, and a nil array or object becomes empty.
func (s *Spec) Encode(v any, format string) (any, error) {
	switch s.Kind {
	case Long:
		if v == nil {
			return nil, nil
		}
		n, ok := ToInt64(v)
		if !ok {
			return nil, s.typeError(v)
		}
		return strconv.FormatInt(n, 10), nil

	case Timestamp:
		if v == nil {
			return nil, nil
		}
		t, ok := ToTime(v)
		if !ok {
			return nil, s.typeError(v)
		}
		switch format {
		case "", FormatMillis:
			return t.UnixMilli(), nil
		case FormatISO:
			return t.UTC().Format(ISOLayout), nil
		case FormatUnix:
			return t.Unix(), nil
		default:
			return nil, fmt.Errorf("unsupported format %q for field %q", format, s.Name)
		}

	case Array:
		items, ok := toSlice(v)
		if !ok {
			return nil, s.typeError(v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			enc, err := s.encodeChild(s.Elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil

	case Object:
		if v == nil {
			return map[string]any{}, nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, s.typeError(v)
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			key := k
			if s.Key != nil {
				enc, err := s.encodeChild(s.Key, k)
				if err != nil {
					return nil, err
				}
				key = fmt.Sprint(enc)
			}
			enc, err := s.encodeChild(s.Elem, item)
			if err != nil {
				return nil, err
			}
			out[key] = enc
		}
		return out, nil
	}
	return v, nil
}

func (s *Spec) encodeChild(child *Spec, v any) (any, error) {
	if child == nil {
		return v, nil
	}
	return child.Encode(v, "")
}

// DecodeLong parses the client string form of a long.
func DecodeLong(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid long %q: %w", s, err)
	}
	return n, nil
}

// ToInt64 converts integral numeric values to int64.
// Floats are accepted only when they hold an exact integer.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return ToInt64(float64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// ToTime converts stored timestamp values to time.Time.
// Strings are parsed as RFC 3339 or ISOLayout; integers are epoch milliseconds.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, ISOLayout} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	}
	if ms, ok := ToInt64(v); ok {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

func toSlice(v any) ([]any, bool) {
	if v == nil {
		return []any{}, true
	}
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
