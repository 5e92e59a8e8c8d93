package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrModelNoFields        = "E101" // at least one field required
	ErrUnknownKind          = "E102" // kind is not a known field kind
	ErrMissingTarget        = "E103" // nested kind without a target
	ErrUnknownTarget        = "E104" // target names no declared model
	ErrDuplicateModel       = "E105" // model declared twice
	ErrInvalidFormat        = "E106" // formats on a non-timestamp field or unknown format
	ErrInvalidIDField       = "E107" // id field missing, hidden or nested
	ErrUnknownBase          = "E108" // extends names no declared model
	ErrInheritanceCycle     = "E109" // extends loops back on itself
	ErrMisplacedOption      = "E110" // strategy option on the wrong kind
	ErrDefaultSelectionLoop = "E111" // default selections never terminate
	ErrInvalidName          = "E112" // model or field name is malformed
)

var (
	modelNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	fieldNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled models against the catalog rules.
// Returns all errors found (does not fail-fast).
//
// Checks that need the whole set, such as targets, bases and cycles, run
// across every spec given. When the per-model checks pass, Validate also
// builds the catalog to detect default-selection cycles.
func Validate(specs []ModelSpec) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]*ModelSpec, len(specs))
	for i := range specs {
		m := &specs[i]
		if _, dup := declared[m.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   m.Name,
				Message: fmt.Sprintf("model %q declared more than once", m.Name),
				Code:    ErrDuplicateModel,
				Line:    m.Line,
			})
			continue
		}
		declared[m.Name] = m
	}

	for i := range specs {
		errs = append(errs, validateModel(&specs[i], declared)...)
	}
	errs = append(errs, inheritanceCycles(specs, declared)...)

	if len(errs) > 0 {
		return errs
	}
	if _, err := Build(specs); err != nil {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: err.Error(),
			Code:    ErrDefaultSelectionLoop,
		})
	}
	return errs
}

func validateModel(m *ModelSpec, declared map[string]*ModelSpec) []ValidationError {
	var errs []ValidationError

	// E112: model name
	if !modelNamePattern.MatchString(m.Name) {
		errs = append(errs, ValidationError{
			Field:   m.Name,
			Message: "model name must start with a letter and contain only letters, digits and underscores",
			Code:    ErrInvalidName,
			Line:    m.Line,
		})
	}

	// E101: at least one field, own or inherited
	if len(m.Fields) == 0 && len(m.Extends) == 0 {
		errs = append(errs, ValidationError{
			Field:   m.Name + ".fields",
			Message: "at least one field is required",
			Code:    ErrModelNoFields,
			Line:    m.Line,
		})
	}

	// E108: bases exist
	for _, base := range m.Extends {
		if _, ok := declared[base]; !ok {
			errs = append(errs, ValidationError{
				Field:   m.Name + ".extends",
				Message: fmt.Sprintf("unknown base model %q", base),
				Code:    ErrUnknownBase,
				Line:    m.Line,
			})
		}
	}

	seen := make(map[string]bool, len(m.Fields))
	for i := range m.Fields {
		f := &m.Fields[i]
		path := m.Name + ".fields." + f.Name
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate field name %q", f.Name),
				Code:    ErrInvalidName,
				Line:    f.Line,
			})
		}
		seen[f.Name] = true
		if !fieldNamePattern.MatchString(f.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "field name must be lowercase letters, digits and underscores",
				Code:    ErrInvalidName,
				Line:    f.Line,
			})
		}
		errs = append(errs, validateField(path, f, declared)...)
	}

	// E107: id field is declared somewhere in the chain
	idName := m.IDField
	if idName == "" {
		idName = schema.DefaultIDField
	}
	if id, ok := lookupField(m, idName, declared, map[string]bool{}); !ok {
		errs = append(errs, ValidationError{
			Field:   m.Name + ".id_field",
			Message: fmt.Sprintf("id field %q not declared", idName),
			Code:    ErrInvalidIDField,
			Line:    m.Line,
		})
	} else if !id.Selectable {
		errs = append(errs, ValidationError{
			Field:   m.Name + ".id_field",
			Message: fmt.Sprintf("id field %q must be selectable", idName),
			Code:    ErrInvalidIDField,
			Line:    id.Line,
		})
	} else if k, err := field.ParseKind(id.Kind); err == nil && k.IsNested() {
		errs = append(errs, ValidationError{
			Field:   m.Name + ".id_field",
			Message: fmt.Sprintf("id field %q cannot be a nested kind", idName),
			Code:    ErrInvalidIDField,
			Line:    id.Line,
		})
	}

	return errs
}

func validateField(path string, f *FieldSpec, declared map[string]*ModelSpec) []ValidationError {
	var errs []ValidationError

	// E102: kind
	kind, err := field.ParseKind(f.Kind)
	if err != nil {
		return append(errs, ValidationError{
			Field:   path + ".kind",
			Message: fmt.Sprintf("unknown kind %q; expected one of %s", f.Kind, kindList()),
			Code:    ErrUnknownKind,
			Line:    f.Line,
		})
	}

	// E103/E104: targets
	if kind.IsNested() {
		if f.Target == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".target",
				Message: fmt.Sprintf("%s field requires a target model", kind),
				Code:    ErrMissingTarget,
				Line:    f.Line,
			})
		} else if _, ok := declared[f.Target]; !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".target",
				Message: fmt.Sprintf("unknown target model %q", f.Target),
				Code:    ErrUnknownTarget,
				Line:    f.Line,
			})
		}
	} else if f.Target != "" {
		errs = append(errs, ValidationError{
			Field:   path + ".target",
			Message: fmt.Sprintf("target is only valid on nested kinds, not %s", kind),
			Code:    ErrMisplacedOption,
			Line:    f.Line,
		})
	}

	// E106: formats
	if len(f.Formats) > 0 {
		allowed := field.Timestamp.DefaultFormats()
		if kind != field.Timestamp {
			errs = append(errs, ValidationError{
				Field:   path + ".formats",
				Message: fmt.Sprintf("formats are only valid on timestamp fields, not %s", kind),
				Code:    ErrInvalidFormat,
				Line:    f.Line,
			})
		} else {
			for _, format := range f.Formats {
				if !slices.Contains(allowed, format) {
					errs = append(errs, ValidationError{
						Field:   path + ".formats",
						Message: fmt.Sprintf("unknown format %q; expected one of %s", format, strings.Join(allowed, ", ")),
						Code:    ErrInvalidFormat,
						Line:    f.Line,
					})
				}
			}
		}
	}

	// E110: strategy options
	if f.IDPath != "" && kind != field.NestedID {
		errs = append(errs, ValidationError{
			Field:   path + ".id_path",
			Message: fmt.Sprintf("id_path is only valid on nested_id fields, not %s", kind),
			Code:    ErrMisplacedOption,
			Line:    f.Line,
		})
	}
	if f.FilterField != "" && kind != field.Relation {
		errs = append(errs, ValidationError{
			Field:   path + ".filter_field",
			Message: fmt.Sprintf("filter_field is only valid on relation fields, not %s", kind),
			Code:    ErrMisplacedOption,
			Line:    f.Line,
		})
	}
	if f.Of != nil && kind != field.Array {
		errs = append(errs, ValidationError{
			Field:   path + ".of",
			Message: fmt.Sprintf("of is only valid on array fields, not %s", kind),
			Code:    ErrMisplacedOption,
			Line:    f.Line,
		})
	}
	if (f.Key != nil || f.Value != nil) && kind != field.Object {
		errs = append(errs, ValidationError{
			Field:   path + ".key",
			Message: fmt.Sprintf("key and value are only valid on object fields, not %s", kind),
			Code:    ErrMisplacedOption,
			Line:    f.Line,
		})
	}

	children := []struct {
		name string
		spec *FieldSpec
	}{
		{"of", f.Of},
		{"key", f.Key},
		{"value", f.Value},
	}
	for _, c := range children {
		if c.spec == nil {
			continue
		}
		errs = append(errs, validateField(path+"."+c.name, c.spec, declared)...)
	}

	return errs
}

// lookupField finds name among the model's own fields or, failing that, its
// bases in order. It mirrors the merge rule of schema.Define.
func lookupField(m *ModelSpec, name string, declared map[string]*ModelSpec, visiting map[string]bool) (*FieldSpec, bool) {
	if visiting[m.Name] {
		return nil, false
	}
	visiting[m.Name] = true
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	for _, base := range m.Extends {
		b, ok := declared[base]
		if !ok {
			continue
		}
		if f, ok := lookupField(b, name, declared, visiting); ok {
			return f, true
		}
	}
	return nil, false
}

// inheritanceCycles reports E109 for every model that reaches itself
// through extends.
func inheritanceCycles(specs []ModelSpec, declared map[string]*ModelSpec) []ValidationError {
	var errs []ValidationError
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(specs))
	var stack []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = active
		stack = append(stack, name)
		for _, base := range declared[name].Extends {
			if _, ok := declared[base]; !ok {
				continue
			}
			switch state[base] {
			case unvisited:
				visit(base)
			case active:
				start := slices.Index(stack, base)
				path := append(slices.Clone(stack[start:]), base)
				errs = append(errs, ValidationError{
					Field:   name + ".extends",
					Message: "inheritance cycle: " + strings.Join(path, " -> "),
					Code:    ErrInheritanceCycle,
					Line:    declared[name].Line,
				})
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
	}

	for i := range specs {
		name := specs[i].Name
		if declared[name] != &specs[i] || state[name] != unvisited {
			continue
		}
		visit(name)
	}
	return errs
}

func kindList() string {
	names := make([]string, 0, len(field.Kinds()))
	for _, k := range field.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
