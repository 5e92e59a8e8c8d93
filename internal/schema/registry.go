package schema

import (
	"slices"
	"sync"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
)

// Registry maps model names to schemas.
//
// Nested fields name their target by string so models may refer to each
// other in any order. Resolve looks the target up on first use and memoizes
// the result per spec.
//
// Thread-safety: Registry is safe for concurrent use. Registration normally
// happens at startup; resolution happens on every request.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]*Schema
	resolved map[*field.Spec]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]*Schema),
		resolved: make(map[*field.Spec]*Schema),
	}
}

// Register adds schemas. A name may only be registered once.
func (r *Registry) Register(schemas ...*Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemas {
		if _, exists := r.models[s.Name]; exists {
			return apierr.Definition(s.Name, "model already registered")
		}
		r.models[s.Name] = s
	}
	return nil
}

// Define builds a schema from def and registers it.
func (r *Registry) Define(def Definition) (*Schema, error) {
	s, err := Define(def)
	if err != nil {
		return nil, err
	}
	if err := r.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.models[name]
	if !ok {
		return nil, apierr.Definition(name, "unknown model")
	}
	return s, nil
}

// Resolve returns the target schema of a nested field.
func (r *Registry) Resolve(spec *field.Spec) (*Schema, error) {
	r.mu.RLock()
	s, ok := r.resolved[spec]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	if !spec.Kind.IsNested() {
		return nil, apierr.Definition("", "field %q is not a nested field", spec.Name)
	}
	target, err := r.Lookup(spec.Target)
	if err != nil {
		return nil, apierr.Definition(spec.Target, "field %q refers to unknown model", spec.Name)
	}

	r.mu.Lock()
	r.resolved[spec] = target
	r.mu.Unlock()
	return target, nil
}

// Models returns every registered schema in creation order.
func (r *Registry) Models() []*Schema {
	r.mu.RLock()
	out := make([]*Schema, 0, len(r.models))
	for _, s := range r.models {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Schema) int {
		switch {
		case a.order < b.order:
			return -1
		case a.order > b.order:
			return 1
		}
		return 0
	})
	return out
}

// Check verifies that every nested field resolves and that default
// selections terminate. Run it once after all models are registered.
func (r *Registry) Check() error {
	for _, s := range r.Models() {
		for _, f := range s.fields {
			if !f.Kind.IsNested() {
				continue
			}
			if _, err := r.Resolve(f); err != nil {
				return err
			}
		}
	}
	if cycles := DefaultCycles(r.Models()); len(cycles) > 0 {
		c := cycles[0]
		return apierr.Definition(c.Path[0], "%s", c.Message)
	}
	return nil
}
