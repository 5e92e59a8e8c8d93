// Package compiler turns CUE model files into schemas and server bindings.
//
// A model file declares models under the top-level "model" struct:
//
//	model: Post: {
//		description: "A blog post"
//		extends: ["Timestamped"]
//		fields: {
//			id:       {kind: "long", default: true}
//			title:    {kind: "string", default: true, modifiable: true}
//			author:   {kind: "nested_id", target: "User", id_path: "author_id", default: true}
//			comments: {kind: "relation", target: "Comment", filter_field: "post_id"}
//		}
//	}
//
// Fields keep their source order, which becomes their declaration order.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ModelSpec is the compiled, not yet validated form of one model.
type ModelSpec struct {
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	IDField       string      `json:"id_field,omitempty"`
	DisplayName   string      `json:"display_name,omitempty"`
	PluralName    string      `json:"plural_name,omitempty"`
	URLName       string      `json:"url_name,omitempty"`
	Hidden        bool        `json:"hidden,omitempty"`
	ReadOnly      bool        `json:"readonly,omitempty"`
	Extends       []string    `json:"extends,omitempty"`
	Server        string      `json:"server,omitempty"`
	DefaultToNone bool        `json:"default_to_none,omitempty"`
	Fields        []FieldSpec `json:"fields"`
	Line          int         `json:"-"`
}

// FieldSpec is the compiled form of one field declaration.
type FieldSpec struct {
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Description string     `json:"description,omitempty"`
	Selectable  bool       `json:"selectable"`
	Default     bool       `json:"default,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Modifiable  bool       `json:"modifiable,omitempty"`
	Creatable   bool       `json:"creatable,omitempty"`
	Filter      bool       `json:"filter,omitempty"`
	Target      string     `json:"target,omitempty"`
	Formats     []string   `json:"formats,omitempty"`
	Of          *FieldSpec `json:"of,omitempty"`
	Key         *FieldSpec `json:"key,omitempty"`
	Value       *FieldSpec `json:"value,omitempty"`
	IDPath      string     `json:"id_path,omitempty"`
	FilterField string     `json:"filter_field,omitempty"`
	Line        int        `json:"-"`
}

// CompileModels compiles every model under the "model" struct of v, in
// source order. A missing "model" struct yields no models.
func CompileModels(v cue.Value) ([]ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, nil
	}
	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ModelSpec
	for iter.Next() {
		spec, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *spec)
	}
	return out, nil
}

// CompileModel parses a CUE value into a ModelSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: User: { ... }`)
//	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.User")))
func CompileModel(v cue.Value) (*ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ModelSpec{Line: v.Pos().Line()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	strs := []struct {
		name string
		dst  *string
	}{
		{"description", &spec.Description},
		{"id_field", &spec.IDField},
		{"display_name", &spec.DisplayName},
		{"plural_name", &spec.PluralName},
		{"url_name", &spec.URLName},
		{"server", &spec.Server},
	}
	for _, s := range strs {
		if *s.dst, err = optionalString(v, s.name); err != nil {
			return nil, err
		}
	}
	bools := []struct {
		name string
		dst  *bool
	}{
		{"hidden", &spec.Hidden},
		{"readonly", &spec.ReadOnly},
		{"default_to_none", &spec.DefaultToNone},
	}
	for _, b := range bools {
		if *b.dst, err = optionalBool(v, b.name, false); err != nil {
			return nil, err
		}
	}

	if spec.Extends, err = optionalStrings(v, "extends"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, *f)
	}
	return spec, nil
}

func compileField(name string, v cue.Value) (*FieldSpec, error) {
	f := &FieldSpec{Name: name, Line: v.Pos().Line()}

	// Shorthand: `title: "string"`
	if kind, err := v.String(); err == nil {
		f.Kind = kind
		f.Selectable = true
		return f, nil
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   "fields." + name + ".kind",
			Message: "field kind is required",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	f.Kind = kind

	strs := []struct {
		name string
		dst  *string
	}{
		{"description", &f.Description},
		{"target", &f.Target},
		{"id_path", &f.IDPath},
		{"filter_field", &f.FilterField},
	}
	for _, s := range strs {
		if *s.dst, err = optionalString(v, s.name); err != nil {
			return nil, err
		}
	}
	if f.Selectable, err = optionalBool(v, "selectable", true); err != nil {
		return nil, err
	}
	bools := []struct {
		name string
		dst  *bool
	}{
		{"default", &f.Default},
		{"required", &f.Required},
		{"modifiable", &f.Modifiable},
		{"creatable", &f.Creatable},
		{"filter", &f.Filter},
	}
	for _, b := range bools {
		if *b.dst, err = optionalBool(v, b.name, false); err != nil {
			return nil, err
		}
	}
	if f.Formats, err = optionalStrings(v, "formats"); err != nil {
		return nil, err
	}

	children := []struct {
		name string
		dst  **FieldSpec
	}{
		{"of", &f.Of},
		{"key", &f.Key},
		{"value", &f.Value},
	}
	for _, c := range children {
		cv := v.LookupPath(cue.ParsePath(c.name))
		if !cv.Exists() {
			continue
		}
		child, err := compileField(name+"."+c.name, cv)
		if err != nil {
			return nil, err
		}
		*c.dst = child
	}
	return f, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string, def bool) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(name))
	if !bv.Exists() {
		return def, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalStrings(v cue.Value, name string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
