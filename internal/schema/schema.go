// Package schema composes field specs into model schemas.
//
// A Schema is built once by Define and is immutable afterwards. Field order is
// the order of declaration: inherited fields first, in base order, followed by
// the model's own fields sorted by their declaration stamp. A field re-declared
// by the model replaces the inherited one and takes the position of the new
// declaration.
package schema

import (
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
)

// DefaultIDField is the id field name used when a definition names none.
const DefaultIDField = "id"

var (
	modelNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	fieldNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	models           = field.NewCounter()
)

// Definition is the input to Define.
type Definition struct {
	// Name is the model name, conventionally CamelCase.
	Name string

	// Bases are merged in order; earlier bases win on name clashes.
	Bases []*Schema

	// Fields are the model's own fields.
	Fields []*field.Spec

	// IDField names the id field. Defaults to DefaultIDField.
	IDField string

	// DisplayName, PluralName and URLName override the derived names.
	DisplayName string
	PluralName  string
	URLName     string

	Description string
	Hidden      bool
	ReadOnly    bool
}

// Schema is the ordered, immutable field catalog of one model.
type Schema struct {
	Name        string
	DisplayName string
	PluralName  string
	LowerName   string
	URLName     string
	Description string
	Hidden      bool
	ReadOnly    bool

	idField string
	fields  []*field.Spec
	index   map[string]int
	order   int64
}

// Define merges bases and own fields into a Schema.
//
// Returns a definition error for duplicate own fields, invalid names, a
// missing or non-selectable id field, or a nested field without a target.
func Define(def Definition) (*Schema, error) {
	if !modelNamePattern.MatchString(def.Name) {
		return nil, apierr.Definition(def.Name, "invalid model name %q", def.Name)
	}

	own := slices.Clone(def.Fields)
	slices.SortStableFunc(own, func(a, b *field.Spec) int {
		switch {
		case a.Order < b.Order:
			return -1
		case a.Order > b.Order:
			return 1
		}
		return 0
	})

	ownNames := make(map[string]bool, len(own))
	for _, f := range own {
		if f == nil {
			return nil, apierr.Definition(def.Name, "nil field spec")
		}
		if ownNames[f.Name] {
			return nil, apierr.Definition(def.Name, "duplicate field %q", f.Name)
		}
		ownNames[f.Name] = true
	}

	var merged []*field.Spec
	seen := make(map[string]bool)
	for _, base := range def.Bases {
		if base == nil {
			return nil, apierr.Definition(def.Name, "nil base schema")
		}
		for _, f := range base.fields {
			if ownNames[f.Name] || seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			merged = append(merged, f)
		}
	}
	merged = append(merged, own...)

	for _, f := range merged {
		if err := checkField(def.Name, f); err != nil {
			return nil, err
		}
	}

	s := &Schema{
		Name:        def.Name,
		DisplayName: def.DisplayName,
		PluralName:  def.PluralName,
		URLName:     def.URLName,
		Description: def.Description,
		Hidden:      def.Hidden,
		ReadOnly:    def.ReadOnly,
		idField:     def.IDField,
		fields:      merged,
		index:       make(map[string]int, len(merged)),
		order:       models.Next(),
	}
	for i, f := range merged {
		s.index[f.Name] = i
	}

	if s.idField == "" {
		s.idField = DefaultIDField
	}
	id, ok := s.Field(s.idField)
	if !ok {
		return nil, apierr.Definition(def.Name, "id field %q not declared", s.idField)
	}
	if !id.Selectable {
		return nil, apierr.Definition(def.Name, "id field %q must be selectable", s.idField)
	}
	if id.Kind.IsNested() {
		return nil, apierr.Definition(def.Name, "id field %q cannot be a nested kind", s.idField)
	}

	if s.DisplayName == "" {
		s.DisplayName = displayName(s.Name)
	}
	if s.PluralName == "" {
		s.PluralName = pluralName(s.DisplayName)
	}
	s.LowerName = lowerName(s.DisplayName)
	if s.URLName == "" {
		s.URLName = urlName(s.PluralName)
	}
	return s, nil
}

// MustDefine is like Define but panics on error. Intended for package-level
// model declarations and tests.
func MustDefine(def Definition) *Schema {
	s, err := Define(def)
	if err != nil {
		panic(err)
	}
	return s
}

func checkField(model string, f *field.Spec) error {
	if !fieldNamePattern.MatchString(f.Name) {
		return apierr.Definition(model, "invalid field name %q (lowercase identifiers only)", f.Name)
	}
	if _, err := field.ParseKind(string(f.Kind)); err != nil {
		return apierr.Definition(model, "field %q: %v", f.Name, err)
	}
	if f.Kind.IsNested() && f.Target == "" {
		return apierr.Definition(model, "nested field %q has no target model", f.Name)
	}
	return nil
}

// Field returns the spec named name.
func (s *Schema) Field(name string) (*field.Spec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// Index returns the declaration position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Fields returns all fields in declaration order.
func (s *Schema) Fields() []*field.Spec {
	return slices.Clone(s.fields)
}

// IDField returns the name of the id field.
func (s *Schema) IDField() string {
	return s.idField
}

// ID returns the id field spec.
func (s *Schema) ID() *field.Spec {
	return s.fields[s.index[s.idField]]
}

// Order returns the model's creation stamp.
func (s *Schema) Order() int64 {
	return s.order
}

// Selectable returns the fields a client may select.
func (s *Schema) Selectable() []*field.Spec {
	return s.filter(func(f *field.Spec) bool { return f.Selectable })
}

// Defaults returns the fields returned when no selection is given.
func (s *Schema) Defaults() []*field.Spec {
	return s.filter(func(f *field.Spec) bool { return f.Selectable && f.Default })
}

// CreateFields returns the fields accepted when creating a record.
func (s *Schema) CreateFields() []*field.Spec {
	return s.filter(func(f *field.Spec) bool {
		return f.Kind.IsStored() && (f.Required || f.Modifiable || f.Creatable)
	})
}

// ModifyFields returns the fields a client may edit.
func (s *Schema) ModifyFields() []*field.Spec {
	return s.filter(func(f *field.Spec) bool { return f.Modifiable })
}

// FilterFields returns the fields usable as list filters.
func (s *Schema) FilterFields() []*field.Spec {
	return s.filter(func(f *field.Spec) bool { return f.Filter })
}

func (s *Schema) filter(keep func(*field.Spec) bool) []*field.Spec {
	var out []*field.Spec
	for _, f := range s.fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Names returns the names of specs in order.
func Names(specs []*field.Spec) []string {
	out := make([]string, len(specs))
	for i, f := range specs {
		out[i] = f.Name
	}
	return out
}

// FieldsHelp renders the selectable field list the way field-selection
// parameters document themselves.
func (s *Schema) FieldsHelp() string {
	return "Fields returned, can be: " + strings.Join(Names(s.Selectable()), ",")
}

// String returns the model name.
func (s *Schema) String() string {
	return s.Name
}
