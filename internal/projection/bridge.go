package projection

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/schema"
)

// Gate filters a record's resolved data before assembly. It may drop or
// mask keys. An error aborts the projection and is returned unchanged.
type Gate func(ctx context.Context, req *Request, data map[string]any) (map[string]any, error)

// ServerModel is the server side of a client schema: which resolver backs
// each field and which gate guards reads.
type ServerModel struct {
	// Name identifies the server model. Defaults to the client schema name.
	Name string

	// Client is the schema selections are parsed against.
	Client *schema.Schema

	// Fields binds client field names to resolvers. Fields not listed use
	// the default for their kind.
	Fields map[string]Resolver

	// Gate is the read permission check. Nil allows everything.
	Gate Gate

	// DefaultToNone makes the fallback DirectCopy yield null for keys
	// missing from a raw record instead of failing.
	DefaultToNone bool
}

// Resolver returns the resolver for q.
func (m *ServerModel) Resolver(q query.Field) Resolver {
	if r, ok := m.Fields[q.Key]; ok {
		return r
	}
	if q.Spec != nil {
		switch q.Spec.Kind {
		case field.Nested:
			return Embedded{}
		case field.NestedID:
			return NestedByID{}
		case field.Relation:
			return RelationByFilter{}
		}
	}
	return DirectCopy{DefaultToNone: m.DefaultToNone}
}

type assocKey struct {
	model string
	field string
}

// Bridge is the registry of client/server bindings and association
// functions. Bindings are one-to-one and fixed once made.
//
// Thread-safety: all methods are safe for concurrent use.
type Bridge struct {
	mu       sync.RWMutex
	byClient map[string]*ServerModel
	byServer map[string]*ServerModel
	assoc    map[assocKey]AssociationFunc
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		byClient: make(map[string]*ServerModel),
		byServer: make(map[string]*ServerModel),
		assoc:    make(map[assocKey]AssociationFunc),
	}
}

// Bind registers m. Binding a client schema or a server name twice is a
// definition error, as is a resolver for a field the client does not
// declare.
func (b *Bridge) Bind(m ServerModel) error {
	if m.Client == nil {
		return apierr.Definition(m.Name, "server model has no client schema")
	}
	if m.Name == "" {
		m.Name = m.Client.Name
	}
	for name := range m.Fields {
		if _, ok := m.Client.Field(name); !ok {
			return apierr.Definition(m.Name, "resolver bound to unknown field %q of %s", name, m.Client.Name)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.byClient[m.Client.Name]; ok {
		return apierr.Definition(m.Client.Name, "client model already bound to server model %s", prev.Name)
	}
	if _, ok := b.byServer[m.Name]; ok {
		return apierr.Definition(m.Name, "server model already bound")
	}
	sm := m
	b.byClient[m.Client.Name] = &sm
	b.byServer[m.Name] = &sm
	return nil
}

// BindAll binds a plain ServerModel for every schema. Useful when no field
// needs more than its kind's default resolver.
func (b *Bridge) BindAll(schemas ...*schema.Schema) error {
	for _, s := range schemas {
		if err := b.Bind(ServerModel{Client: s}); err != nil {
			return err
		}
	}
	return nil
}

// Associate registers the association function of model.field.
func (b *Bridge) Associate(model, fieldName string, fn AssociationFunc) error {
	if fn == nil {
		return apierr.Definition(model, "nil association function for field %q", fieldName)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := assocKey{model, fieldName}
	if _, ok := b.assoc[k]; ok {
		return apierr.Definition(model, "association function for field %q already registered", fieldName)
	}
	b.assoc[k] = fn
	return nil
}

// Lookup returns the server model bound to client.
func (b *Bridge) Lookup(client *schema.Schema) (*ServerModel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sm, ok := b.byClient[client.Name]
	if !ok || sm.Client != client {
		return nil, apierr.Definition(client.Name, "no server model bound to client model %s", client.Name)
	}
	return sm, nil
}

// resolver returns the resolver for q on sm, consulting registered
// association functions for association fields without an explicit binding.
func (b *Bridge) resolver(sm *ServerModel, q query.Field) Resolver {
	if _, ok := sm.Fields[q.Key]; !ok && q.Spec != nil && q.Spec.Kind == field.Association {
		b.mu.RLock()
		fn := b.assoc[assocKey{sm.Client.Name, q.Key}]
		b.mu.RUnlock()
		return Association{Func: fn}
	}
	return sm.Resolver(q)
}

// Check verifies that every bound model's nested targets are bound too and
// that every association field has a function. Returns the first problem
// in model name order.
func (b *Bridge) Check(res query.Resolver) error {
	b.mu.RLock()
	names := make([]string, 0, len(b.byClient))
	for name := range b.byClient {
		names = append(names, name)
	}
	b.mu.RUnlock()
	slices.Sort(names)

	for _, name := range names {
		b.mu.RLock()
		sm := b.byClient[name]
		b.mu.RUnlock()

		for _, spec := range sm.Client.Fields() {
			if !spec.Kind.IsNested() {
				continue
			}
			if spec.Kind == field.Association {
				if _, bound := sm.Fields[spec.Name]; bound {
					continue
				}
				b.mu.RLock()
				_, ok := b.assoc[assocKey{name, spec.Name}]
				b.mu.RUnlock()
				if !ok {
					return apierr.Definition(name, "no association function for field %q", spec.Name)
				}
				continue
			}
			target, err := res.Resolve(spec)
			if err != nil {
				return err
			}
			if _, err := b.Lookup(target); err != nil {
				return apierr.Definition(name, "field %q targets unbound model %s", spec.Name, target.Name)
			}
		}
	}
	return nil
}
