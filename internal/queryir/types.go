// Package queryir is the backend-neutral form of a record lookup.
//
// The projection engine issues lookups in this form; each storage backend
// compiles it to its own query language (SQL for SQLite, a filter document
// for MongoDB). Only the constructs every backend supports are expressible.
package queryir

// Query represents an abstract record lookup.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - In: field ∈ values
//   - And: all predicates must be true
//
// There is no OR and no negation; backends only need equality and set
// membership to serve batched lookups.
type Predicate interface {
	predicateNode()
}

// Select reads the records of one model.
//
// Semantics:
//
//	SELECT * FROM <model> WHERE <filter> ORDER BY insertion LIMIT <limit> OFFSET <offset>
//
// Records are always returned in a deterministic order: insertion order,
// then id. Limit zero means no limit.
type Select struct {
	Model  string    // Model name (e.g., "Post")
	Filter Predicate // WHERE conditions (nil = all records)
	Limit  int       // Maximum rows (0 = unlimited)
	Offset int       // Rows to skip

	// IDField names the model's id field. A top-level In on it may be
	// served from the backend's stored record key.
	IDField string
}

func (Select) queryNode() {}

// Equals represents a field-equals-value predicate.
//
// Field is a dotted path into the stored record ("meta.author_id").
// A nil Value matches records where the field is absent or null.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In represents a set-membership predicate.
//
// This is the shape of every batched lookup: one In over the distinct ids
// of a batch replaces one Equals per record. An empty Values set matches
// nothing.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty Predicates slice is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// ByIDs builds the lookup of model records whose idField is in ids.
func ByIDs(model, idField string, ids []any) Select {
	return Select{Model: model, IDField: idField, Filter: In{Field: idField, Values: ids}}
}

// ByFilter builds the lookup of model records whose field is in values.
func ByFilter(model, field string, values []any) Select {
	return Select{Model: model, Filter: In{Field: field, Values: values}}
}
