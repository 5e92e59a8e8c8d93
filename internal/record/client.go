package record

import (
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/schema"
	"github.com/roach88/selectapi/internal/wire"
)

// ClientRecord is the projected, client-facing form of one record.
//
// Values are held in model declaration order regardless of selection order.
// Keys selected in generic mode that the model does not declare follow, in
// selection order. The values never change after projection; edits are
// staged separately with Set and read back with Changes.
//
// A ClientRecord is not safe for concurrent Set calls.
type ClientRecord struct {
	model   *schema.Schema
	values  []any
	present []bool
	formats []string
	extra   wire.Object
	changes map[string]any
}

// NewClientRecord builds a client record from resolved data. Only keys
// present in data are included; sel supplies formats and the order of
// undeclared keys.
func NewClientRecord(model *schema.Schema, sel []query.Field, data map[string]any) *ClientRecord {
	n := model.Len()
	r := &ClientRecord{
		model:   model,
		values:  make([]any, n),
		present: make([]bool, n),
		formats: make([]string, n),
	}
	for _, q := range sel {
		v, ok := data[q.Key]
		if !ok {
			continue
		}
		if i := model.Index(q.Key); i >= 0 {
			r.values[i] = v
			r.present[i] = true
			r.formats[i] = q.Format
			continue
		}
		r.extra = append(r.extra, wire.Pair{Key: q.Key, Value: v})
	}
	return r
}

// Model returns the record's schema.
func (r *ClientRecord) Model() *schema.Schema {
	return r.model
}

// Get returns the projected value of key.
func (r *ClientRecord) Get(key string) (any, bool) {
	if i := r.model.Index(key); i >= 0 {
		return r.values[i], r.present[i]
	}
	return r.extra.Get(key)
}

// ID returns the projected id, or nil when it was not selected.
func (r *ClientRecord) ID() any {
	v, _ := r.Get(r.model.IDField())
	return v
}

// Keys returns the present keys in output order.
func (r *ClientRecord) Keys() []string {
	var keys []string
	for i, f := range r.model.Fields() {
		if r.present[i] {
			keys = append(keys, f.Name)
		}
	}
	for _, p := range r.extra {
		keys = append(keys, p.Key)
	}
	return keys
}

// Map returns the projected values keyed by field name.
func (r *ClientRecord) Map() map[string]any {
	out := make(map[string]any)
	for _, k := range r.Keys() {
		out[k], _ = r.Get(k)
	}
	return out
}

// Set stages an edit. The field must be declared and modifiable, and the
// value must validate. Long and timestamp values are normalized to int64 and
// time.Time so string client forms are accepted.
func (r *ClientRecord) Set(key string, v any) error {
	spec, ok := r.model.Field(key)
	if !ok {
		return apierr.Validation("cannot set %s, no such field in %s", key, r.model.Name)
	}
	if !spec.Modifiable {
		return apierr.Validation("cannot set %s, field not modifiable in %s", key, r.model.Name)
	}
	if err := spec.Validate(v); err != nil {
		return err
	}
	switch spec.Kind {
	case field.Long:
		if v != nil {
			v, _ = field.ToInt64(v)
		}
	case field.Timestamp:
		if v != nil {
			v, _ = field.ToTime(v)
		}
	}
	if r.changes == nil {
		r.changes = make(map[string]any)
	}
	r.changes[key] = v
	return nil
}

// Changes returns a copy of the staged edits.
func (r *ClientRecord) Changes() map[string]any {
	return maps.Clone(r.changes)
}

// Changed reports whether edits are staged.
func (r *ClientRecord) Changed() bool {
	return len(r.changes) > 0
}

// Discard drops staged edits.
func (r *ClientRecord) Discard() {
	r.changes = nil
}

// Object returns the client encoding as an ordered object. Longs become
// strings and timestamps follow their selected format.
func (r *ClientRecord) Object() (wire.Object, error) {
	obj := make(wire.Object, 0, len(r.values)+len(r.extra))
	for i, spec := range r.model.Fields() {
		if !r.present[i] {
			continue
		}
		v, err := spec.Encode(r.values[i], r.formats[i])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.model.Name, spec.Name, err)
		}
		obj = append(obj, wire.Pair{Key: spec.Name, Value: v})
	}
	return append(obj, r.extra...), nil
}

// MarshalJSON implements json.Marshaler.
func (r *ClientRecord) MarshalJSON() ([]byte, error) {
	obj, err := r.Object()
	if err != nil {
		return nil, err
	}
	return obj.MarshalJSON()
}

// String renders the record as Model(k=v, ...). Nested fields show only
// their name; staged edits are marked with *.
func (r *ClientRecord) String() string {
	var parts []string
	for i, spec := range r.model.Fields() {
		if !r.present[i] || r.values[i] == nil {
			continue
		}
		switch {
		case spec.Kind.IsNested():
			parts = append(parts, spec.Name)
		case r.changes != nil && hasKey(r.changes, spec.Name):
			parts = append(parts, fmt.Sprintf("%s*=%#v", spec.Name, r.changes[spec.Name]))
		default:
			parts = append(parts, fmt.Sprintf("%s=%#v", spec.Name, r.values[i]))
		}
	}
	return r.model.Name + "(" + strings.Join(parts, ", ") + ")"
}

func hasKey(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}
