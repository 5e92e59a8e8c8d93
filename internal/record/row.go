// Package record holds the two record shapes of a projection: the raw
// storage row with its staging slots, and the ordered client record built
// from it.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/selectapi/internal/field"
)

// Row is one raw storage record: field name to stored value.
type Row map[string]any

// Lookup returns the value at a dotted path, descending into nested
// objects. A missing segment or a non-object along the way is reported as
// not found.
func (r Row) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Row:
		return m, true
	}
	return nil, false
}

// Key normalizes an id value for use as a map key.
//
// Stores disagree on id representation (int64, float64, json.Number,
// string), so every integral value maps to its decimal form and strings map
// to themselves. Nil has no key.
func Key(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, true
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		return id.String(), true
	case bool:
		return strconv.FormatBool(id), true
	}
	if n, ok := field.ToInt64(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return fmt.Sprint(v), true
}
