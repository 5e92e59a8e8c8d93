package testutil

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// ErrNotFound is returned by MemoryBackend.Update for unknown ids.
var ErrNotFound = errors.New("record not found")

// MemoryBackend is an in-memory record store with the same lookup
// semantics as the SQLite store: rows come back in insertion order and ids
// match by key form, so int and int64 ids are equal.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryBackend struct {
	mu     sync.RWMutex
	models map[string][]record.Row
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{models: make(map[string][]record.Row)}
}

// Insert appends rows to model without id conflict checks.
func (m *MemoryBackend) Insert(model string, rows ...record.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.models[model] = append(m.models[model], maps.Clone(row))
	}
}

// Find evaluates q over the stored rows.
func (m *MemoryBackend) Find(ctx context.Context, q queryir.Query) ([]record.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res := queryir.Validate(q); !res.OK() {
		return nil, fmt.Errorf("invalid query: %w", res.Err())
	}
	sel, ok := q.(queryir.Select)
	if !ok {
		return nil, fmt.Errorf("unsupported query type: %T", q)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []record.Row
	for _, row := range m.models[sel.Model] {
		if sel.Filter == nil || match(row, sel.Filter) {
			out = append(out, maps.Clone(row))
		}
	}
	if sel.Offset > 0 {
		if sel.Offset >= len(out) {
			return nil, nil
		}
		out = out[sel.Offset:]
	}
	if sel.Limit > 0 && len(out) > sel.Limit {
		out = out[:sel.Limit]
	}
	return out, nil
}

// FindByIDs returns the rows of model whose id is in ids.
func (m *MemoryBackend) FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error) {
	return m.Find(ctx, queryir.ByIDs(model.Name, model.IDField(), ids))
}

// FindByFilter returns the rows of model whose field is in values.
func (m *MemoryBackend) FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error) {
	return m.Find(ctx, queryir.ByFilter(model.Name, field, values))
}

// Update merges changes into the row with the given id.
func (m *MemoryBackend) Update(ctx context.Context, model *schema.Schema, id any, changes map[string]any) error {
	want, ok := record.Key(id)
	if !ok {
		return fmt.Errorf("update %s: nil id", model.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.models[model.Name] {
		if got, ok := record.Key(row[model.IDField()]); ok && got == want {
			maps.Copy(row, changes)
			return nil
		}
	}
	return fmt.Errorf("update %s %s: %w", model.Name, want, ErrNotFound)
}

// Rows returns a copy of the stored rows of model.
func (m *MemoryBackend) Rows(model string) []record.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Row, len(m.models[model]))
	for i, row := range m.models[model] {
		out[i] = maps.Clone(row)
	}
	return out
}

func match(row record.Row, p queryir.Predicate) bool {
	switch pred := p.(type) {
	case queryir.Equals:
		v, ok := row.Lookup(pred.Field)
		if pred.Value == nil {
			return !ok || v == nil
		}
		return sameKey(v, pred.Value)
	case queryir.In:
		v, _ := row.Lookup(pred.Field)
		for _, want := range pred.Values {
			if want != nil && sameKey(v, want) {
				return true
			}
		}
		return false
	case queryir.And:
		for _, sub := range pred.Predicates {
			if !match(row, sub) {
				return false
			}
		}
		return true
	}
	return false
}

func sameKey(a, b any) bool {
	ka, okA := record.Key(a)
	kb, okB := record.Key(b)
	return okA && okB && ka == kb
}
