package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/wire"
)

// marshalRow converts a row to JSON TEXT for storage. Keys are sorted and
// strings NFC-normalized so equal rows store identical text.
func marshalRow(row record.Row) (string, error) {
	data, err := wire.Marshal(map[string]any(row))
	if err != nil {
		return "", fmt.Errorf("marshal row: %w", err)
	}
	return string(data), nil
}

// unmarshalRow parses JSON TEXT into a row. Integral numbers decode as
// int64 so 64-bit ids survive; other numbers decode as float64.
func unmarshalRow(data string) (record.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	if raw == nil {
		return record.Row{}, nil
	}
	return record.Row(normalizeNumbers(raw).(map[string]any)), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case map[string]any:
		for k, elem := range val {
			val[k] = normalizeNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = normalizeNumbers(elem)
		}
		return val
	}
	return v
}
