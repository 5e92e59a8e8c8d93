package compiler

import (
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/projection"
	"github.com/roach88/selectapi/internal/schema"
)

// Catalog is the built form of a set of model specs.
type Catalog struct {
	// Registry holds every schema, in build order.
	Registry *schema.Registry

	// Bindings holds one server model per schema, in build order.
	Bindings []projection.ServerModel

	specs map[string]*ModelSpec
}

// Build defines a schema for every spec, bases before the models that
// extend them, and derives the server bindings. It fails on the first
// definition error; run Validate first for a full report.
func Build(specs []ModelSpec) (*Catalog, error) {
	c := &Catalog{
		Registry: schema.NewRegistry(),
		specs:    make(map[string]*ModelSpec, len(specs)),
	}
	for i := range specs {
		if _, dup := c.specs[specs[i].Name]; dup {
			return nil, apierr.Definition(specs[i].Name, "model declared more than once")
		}
		c.specs[specs[i].Name] = &specs[i]
	}

	order, err := c.buildOrder(specs)
	if err != nil {
		return nil, err
	}

	built := make(map[string]*schema.Schema, len(order))
	for _, m := range order {
		def, err := definition(m, built)
		if err != nil {
			return nil, err
		}
		s, err := c.Registry.Define(def)
		if err != nil {
			return nil, err
		}
		built[m.Name] = s
		c.Bindings = append(c.Bindings, c.binding(m, s))
	}

	if err := c.Registry.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// buildOrder sorts specs so every base precedes its extensions. Ties keep
// source order.
func (c *Catalog) buildOrder(specs []ModelSpec) ([]*ModelSpec, error) {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(specs))
	order := make([]*ModelSpec, 0, len(specs))
	var path []string

	var visit func(m *ModelSpec) error
	visit = func(m *ModelSpec) error {
		switch state[m.Name] {
		case done:
			return nil
		case active:
			return apierr.Definition(m.Name, "inheritance cycle: %s -> %s", strings.Join(path, " -> "), m.Name)
		}
		state[m.Name] = active
		path = append(path, m.Name)
		for _, name := range m.Extends {
			base, ok := c.specs[name]
			if !ok {
				return apierr.Definition(m.Name, "unknown base model %q", name)
			}
			if err := visit(base); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[m.Name] = done
		order = append(order, m)
		return nil
	}

	for i := range specs {
		if err := visit(&specs[i]); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func definition(m *ModelSpec, built map[string]*schema.Schema) (schema.Definition, error) {
	def := schema.Definition{
		Name:        m.Name,
		IDField:     m.IDField,
		DisplayName: m.DisplayName,
		PluralName:  m.PluralName,
		URLName:     m.URLName,
		Description: m.Description,
		Hidden:      m.Hidden,
		ReadOnly:    m.ReadOnly,
	}
	for _, name := range m.Extends {
		def.Bases = append(def.Bases, built[name])
	}
	for i := range m.Fields {
		spec, err := fieldSpec(m.Name, &m.Fields[i])
		if err != nil {
			return schema.Definition{}, err
		}
		def.Fields = append(def.Fields, spec)
	}
	return def, nil
}

// fieldSpec converts a FieldSpec. Children are created before the parent so
// the parent's declaration stamp is the latest.
func fieldSpec(model string, f *FieldSpec) (*field.Spec, error) {
	kind, err := field.ParseKind(f.Kind)
	if err != nil {
		return nil, apierr.Definition(model, "field %q: %v", f.Name, err)
	}

	var opts []field.Option
	if !f.Selectable {
		opts = append(opts, field.Hidden())
	}
	if f.Default {
		opts = append(opts, field.Default())
	}
	if f.Required {
		opts = append(opts, field.Required())
	}
	if f.Modifiable {
		opts = append(opts, field.Modifiable())
	}
	if f.Creatable {
		opts = append(opts, field.Creatable())
	}
	if f.Filter {
		opts = append(opts, field.Filter())
	}
	if f.Description != "" {
		opts = append(opts, field.Describe(f.Description))
	}
	if f.Target != "" {
		opts = append(opts, field.Target(f.Target))
	}
	if len(f.Formats) > 0 {
		opts = append(opts, field.Formats(f.Formats...))
	}

	if f.Of != nil {
		elem, err := fieldSpec(model, f.Of)
		if err != nil {
			return nil, err
		}
		opts = append(opts, field.Of(elem))
	}
	if f.Key != nil || f.Value != nil {
		var key, value *field.Spec
		if f.Key != nil {
			if key, err = fieldSpec(model, f.Key); err != nil {
				return nil, err
			}
		}
		if f.Value != nil {
			if value, err = fieldSpec(model, f.Value); err != nil {
				return nil, err
			}
		}
		opts = append(opts, field.MapOf(key, value))
	}

	name := f.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return field.New(name, kind, opts...), nil
}

// binding derives the server model of s. Strategy options declared on a
// base apply to the inherited field unless the model re-declares it.
func (c *Catalog) binding(m *ModelSpec, s *schema.Schema) projection.ServerModel {
	sm := projection.ServerModel{
		Name:          m.Server,
		Client:        s,
		DefaultToNone: m.DefaultToNone,
	}
	for _, spec := range s.Fields() {
		f, ok := lookupField(m, spec.Name, c.specs, map[string]bool{})
		if !ok {
			continue
		}
		var r projection.Resolver
		switch {
		case spec.Kind == field.NestedID && f.IDPath != "":
			r = projection.NestedByID{IDPath: f.IDPath}
		case spec.Kind == field.Relation && f.FilterField != "":
			r = projection.RelationByFilter{FilterField: f.FilterField}
		default:
			continue
		}
		if sm.Fields == nil {
			sm.Fields = make(map[string]projection.Resolver)
		}
		sm.Fields[spec.Name] = r
	}
	return sm
}

// Spec returns the model spec a schema was built from.
func (c *Catalog) Spec(name string) (*ModelSpec, bool) {
	m, ok := c.specs[name]
	return m, ok
}

// Models returns the built schemas in build order.
func (c *Catalog) Models() []*schema.Schema {
	return c.Registry.Models()
}

// Bridge binds every server model into a new bridge. Association fields
// still need a function registered with Bridge.Associate.
func (c *Catalog) Bridge() (*projection.Bridge, error) {
	b := projection.NewBridge()
	for _, sm := range c.Bindings {
		if err := b.Bind(sm); err != nil {
			return nil, err
		}
	}
	return b, nil
}
