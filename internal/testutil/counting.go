package testutil

import (
	"context"
	"sync"

	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// Backend is the lookup surface a CountingBackend wraps.
type Backend interface {
	FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error)
	FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error)
}

// Call is one recorded lookup.
type Call struct {
	Method string // "FindByIDs" or "FindByFilter"
	Model  string
	Field  string // filter field; empty for FindByIDs
	Values []any
}

// CountingBackend records every lookup before delegating. Err, when set,
// is returned instead of delegating.
//
// Thread-safety: all methods are safe for concurrent use.
type CountingBackend struct {
	Backend

	mu    sync.Mutex
	calls []Call
	Err   error
}

// NewCountingBackend wraps b.
func NewCountingBackend(b Backend) *CountingBackend {
	return &CountingBackend{Backend: b}
}

// FindByIDs records the call and delegates.
func (c *CountingBackend) FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error) {
	c.record(Call{Method: "FindByIDs", Model: model.Name, Values: ids})
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Backend.FindByIDs(ctx, model, ids)
}

// FindByFilter records the call and delegates.
func (c *CountingBackend) FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error) {
	c.record(Call{Method: "FindByFilter", Model: model.Name, Field: field, Values: values})
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Backend.FindByFilter(ctx, model, field, values)
}

func (c *CountingBackend) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

// Calls returns a copy of the recorded calls in call order.
func (c *CountingBackend) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Count returns how many lookups hit model.
func (c *CountingBackend) Count(model string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Model == model {
			n++
		}
	}
	return n
}

// Reset clears the recorded calls.
func (c *CountingBackend) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
