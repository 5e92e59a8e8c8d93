// Package field describes the typed attributes that make up a model.
//
// A Spec is created once with New and never mutated afterwards. Its Order is
// stamped from a process-wide counter at creation, which is the only source
// of field ordering in a model.
package field

import (
	"fmt"
	"slices"
)

// Spec is an immutable description of one model attribute.
type Spec struct {
	// Name is the field key. Lowercase by convention.
	Name string

	// Kind is the value type.
	Kind Kind

	// Description is shown in field listings.
	Description string

	// Selectable fields may appear in a client selection.
	Selectable bool

	// Default fields are returned when no selection is given.
	Default bool

	// Required, Modifiable and Creatable drive the write-side field subsets.
	Required   bool
	Modifiable bool
	Creatable  bool

	// Filter marks the field as usable as a list filter.
	Filter bool

	// Elem is the element spec for arrays and the value spec for objects.
	Elem *Spec

	// Key is the key spec for objects. Nil means string keys.
	Key *Spec

	// Target names the referenced model for nested kinds.
	Target string

	// Formats lists the accepted output formats.
	Formats []string

	// Order is the global declaration order.
	Order int64
}

// Option configures a Spec at creation.
type Option func(*Spec)

// New creates a field spec and stamps its declaration order.
// Fields are selectable unless Hidden is given.
func New(name string, kind Kind, opts ...Option) *Spec {
	s := &Spec{
		Name:       name,
		Kind:       kind,
		Selectable: true,
		Formats:    kind.DefaultFormats(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Order = NextOrder()
	return s
}

// Hidden excludes the field from client selections.
func Hidden() Option {
	return func(s *Spec) { s.Selectable = false }
}

// Default includes the field when no selection is given.
func Default() Option {
	return func(s *Spec) { s.Default = true }
}

// Required marks the field as required on create.
func Required() Option {
	return func(s *Spec) { s.Required = true }
}

// Modifiable allows client edits to the field.
func Modifiable() Option {
	return func(s *Spec) { s.Modifiable = true }
}

// Creatable allows the field on create.
func Creatable() Option {
	return func(s *Spec) { s.Creatable = true }
}

// Filter marks the field as a list filter.
func Filter() Option {
	return func(s *Spec) { s.Filter = true }
}

// Describe sets the description.
func Describe(text string) Option {
	return func(s *Spec) { s.Description = text }
}

// Of sets the element spec of an array or the value spec of an object.
func Of(elem *Spec) Option {
	return func(s *Spec) { s.Elem = elem }
}

// MapOf sets the key and value specs of an object.
func MapOf(key, value *Spec) Option {
	return func(s *Spec) {
		s.Key = key
		s.Elem = value
	}
}

// Target names the model a nested field refers to.
func Target(model string) Option {
	return func(s *Spec) { s.Target = model }
}

// Formats replaces the accepted output formats.
func Formats(formats ...string) Option {
	return func(s *Spec) { s.Formats = slices.Clone(formats) }
}

// AllowsFormat reports whether format is accepted by this field.
func (s *Spec) AllowsFormat(format string) bool {
	return slices.Contains(s.Formats, format)
}

// String renders the spec for diagnostics.
func (s *Spec) String() string {
	if s.Target != "" {
		return fmt.Sprintf("%s:%s(%s)", s.Name, s.Kind, s.Target)
	}
	return fmt.Sprintf("%s:%s", s.Name, s.Kind)
}
