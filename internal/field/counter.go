package field

import "sync/atomic"

// Counter is a monotonic sequence used to stamp declarations.
//
// Field order inside a model is the order in which specs were created, not
// the order of any map or struct literal. A single process-wide counter makes
// that order total across models, so inherited fields always sort before
// fields declared later.
//
// Thread-safety: Counter is safe for concurrent use.
type Counter struct {
	seq atomic.Int64
}

// NewCounter creates a counter starting at 0.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt creates a counter starting at a specific value.
func NewCounterAt(start int64) *Counter {
	c := &Counter{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the counter.
func (c *Counter) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Counter) Current() int64 {
	return c.seq.Load()
}

var declarations = NewCounter()

// NextOrder returns the next global declaration order.
func NextOrder() int64 {
	return declarations.Next()
}
