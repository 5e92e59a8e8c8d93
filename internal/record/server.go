package record

import (
	"sync/atomic"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/schema"
)

// ServerRecord is a storage row bound to its model, plus the staging area a
// projection fills in.
//
// Staging is a slice of slots, one per selected field, so concurrent
// resolvers write to disjoint memory. A record can be projected only once.
type ServerRecord struct {
	Model *schema.Schema
	Data  Row

	begun  atomic.Bool
	slots  []any
	filled []bool
}

// NewServerRecord binds a row to a model.
func NewServerRecord(model *schema.Schema, data Row) *ServerRecord {
	if data == nil {
		data = Row{}
	}
	return &ServerRecord{Model: model, Data: data}
}

// NewServerRecords binds every row to model.
func NewServerRecords(model *schema.Schema, rows []Row) []*ServerRecord {
	out := make([]*ServerRecord, len(rows))
	for i, row := range rows {
		out[i] = NewServerRecord(model, row)
	}
	return out
}

// ID returns the raw id value.
func (r *ServerRecord) ID() any {
	return r.Data[r.Model.IDField()]
}

// Begin allocates n staging slots. It fails if the record was projected
// before, even if that projection failed.
func (r *ServerRecord) Begin(n int) error {
	if !r.begun.CompareAndSwap(false, true) {
		id, _ := Key(r.ID())
		return &apierr.Error{
			Code:    apierr.CodeInternal,
			Message: "record already projected (id=" + id + ")",
			Model:   r.Model.Name,
		}
	}
	r.slots = make([]any, n)
	r.filled = make([]bool, n)
	return nil
}

// Projected reports whether Begin has been called.
func (r *ServerRecord) Projected() bool {
	return r.begun.Load()
}

// Stage stores the resolved value of slot i.
func (r *ServerRecord) Stage(i int, v any) {
	r.slots[i] = v
	r.filled[i] = true
}

// Staged returns the filled slots as a map keyed by keys[i].
func (r *ServerRecord) Staged(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for i, k := range keys {
		if i < len(r.filled) && r.filled[i] {
			out[k] = r.slots[i]
		}
	}
	return out
}
