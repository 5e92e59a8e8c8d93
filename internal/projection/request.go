package projection

import "github.com/google/uuid"

// Request carries the caller's identity through resolvers, association
// functions and permission gates.
type Request struct {
	// ID correlates log lines of one projection. Assigned by the engine
	// when empty.
	ID string

	// Principal is the authenticated caller, opaque to the engine.
	Principal any

	// Values holds request-scoped data for gates and association functions.
	Values map[string]any
}

// Value returns a request-scoped value, or nil.
func (r *Request) Value(key string) any {
	if r == nil {
		return nil
	}
	return r.Values[key]
}

// RequestIDGenerator generates request ids.
// Implemented by UUIDv7Generator (production) and the testutil generators.
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
