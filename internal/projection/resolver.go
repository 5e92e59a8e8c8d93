package projection

import (
	"context"
	"fmt"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// Strategy names, as used in model files, logs and metrics.
const (
	StrategyDirect      = "direct"
	StrategyEmbedded    = "embedded"
	StrategyNestedByID  = "nested_by_id"
	StrategyRelation    = "relation"
	StrategyAssociation = "association"
)

// Resolver computes one selected field for a whole batch.
//
// Resolve must write every record's value with Batch.Set, or return an
// error. It is called at most once per field per batch and may run
// concurrently with the resolvers of sibling fields.
type Resolver interface {
	Strategy() string
	Resolve(ctx context.Context, b *Batch) error
}

// Batch is the input of one resolver call.
type Batch struct {
	Request *Request
	Model   *schema.Schema
	Records []*record.ServerRecord
	Field   query.Field

	engine  *Engine
	slot    int
	depth   int
	partial bool
}

// Set stages v as the field's value on rec.
func (b *Batch) Set(rec *record.ServerRecord, v any) {
	rec.Stage(b.slot, v)
}

// Project projects rows of the field's target model with the field's
// sub-selection, one level deeper.
func (b *Batch) Project(ctx context.Context, rows []record.Row) ([]*record.ClientRecord, error) {
	return b.project(ctx, rows, false)
}

func (b *Batch) project(ctx context.Context, rows []record.Row, partial bool) ([]*record.ClientRecord, error) {
	target := b.Field.Schema
	if target == nil {
		return nil, apierr.Internal("field %s.%s has no target schema", b.Model.Name, b.Field.Key)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	sm, err := b.engine.bridge.Lookup(target)
	if err != nil {
		return nil, err
	}
	return b.engine.project(ctx, b.Request, sm, record.NewServerRecords(target, rows), b.Field.Sub, b.depth+1, partial)
}

func (b *Batch) backend() Backend {
	return b.engine.backend
}

func (b *Batch) resolutionError(err error) error {
	return apierr.Resolution(b.Model.Name, b.Field.Key, err)
}

// DirectCopy copies the raw value stored under the field's key.
//
// A key missing from a record is a MissingFieldError unless DefaultToNone
// is set, in which case the value is null.
type DirectCopy struct {
	DefaultToNone bool
}

func (DirectCopy) Strategy() string { return StrategyDirect }

func (r DirectCopy) Resolve(ctx context.Context, b *Batch) error {
	key := b.Field.Key
	for _, rec := range b.Records {
		v, ok := rec.Data[key]
		if !ok {
			switch {
			case r.DefaultToNone:
				v = nil
			case b.partial:
				continue
			default:
				return apierr.MissingField(b.Model.Name, key)
			}
		}
		b.Set(rec, v)
	}
	return nil
}

// Embedded projects a document stored inline under the field's key. Keys
// absent from the inline document are left out of the result.
type Embedded struct{}

func (Embedded) Strategy() string { return StrategyEmbedded }

func (Embedded) Resolve(ctx context.Context, b *Batch) error {
	key := b.Field.Key
	var rows []record.Row
	owners := make([]int, 0, len(b.Records))
	for i, rec := range b.Records {
		v := rec.Data[key]
		if v == nil {
			b.Set(rec, nil)
			continue
		}
		doc, ok := asRow(v)
		if !ok {
			return b.resolutionError(fmt.Errorf("expected an embedded document, got %T", v))
		}
		rows = append(rows, doc)
		owners = append(owners, i)
	}

	clients, err := b.project(ctx, rows, true)
	if err != nil {
		return err
	}
	for j, c := range clients {
		b.Set(b.Records[owners[j]], c)
	}
	return nil
}

func asRow(v any) (record.Row, bool) {
	switch m := v.(type) {
	case record.Row:
		return m, true
	case map[string]any:
		return record.Row(m), true
	}
	return nil, false
}

// NestedByID resolves a reference to another model by id.
//
// IDPath is the dotted path of the referenced id in the raw record;
// it defaults to "<field>_id". The distinct ids of the batch are looked up
// with one FindByIDs call. Unresolved references are null.
type NestedByID struct {
	IDPath string
}

func (NestedByID) Strategy() string { return StrategyNestedByID }

func (r NestedByID) Resolve(ctx context.Context, b *Batch) error {
	path := r.IDPath
	if path == "" {
		path = b.Field.Key + "_id"
	}

	refs := make([]string, len(b.Records))
	var ids []any
	seen := make(map[string]bool)
	for i, rec := range b.Records {
		v, _ := rec.Data.Lookup(path)
		key, ok := record.Key(v)
		if !ok {
			continue
		}
		refs[i] = key
		if !seen[key] {
			seen[key] = true
			ids = append(ids, v)
		}
	}

	byID := map[string]*record.ClientRecord{}
	if len(ids) > 0 {
		target := b.Field.Schema
		rows, err := b.backend().FindByIDs(ctx, target, ids)
		if err != nil {
			return b.resolutionError(err)
		}
		clients, err := b.Project(ctx, rows)
		if err != nil {
			return err
		}
		for i, row := range rows {
			if key, ok := record.Key(row[target.IDField()]); ok {
				byID[key] = clients[i]
			}
		}
	}

	for i, rec := range b.Records {
		if c, ok := byID[refs[i]]; ok && refs[i] != "" {
			b.Set(rec, c)
		} else {
			b.Set(rec, nil)
		}
	}
	return nil
}

// RelationByFilter resolves the records of another model that point back at
// the owner.
//
// FilterField is the related model's field holding the owner id; it
// defaults to "<owner lower name>_id". The owner ids of the batch are looked
// up with one FindByFilter call and grouped per owner, in storage order.
// Owners without related records get an empty list.
type RelationByFilter struct {
	FilterField string
}

func (RelationByFilter) Strategy() string { return StrategyRelation }

func (r RelationByFilter) Resolve(ctx context.Context, b *Batch) error {
	filter := r.FilterField
	if filter == "" {
		filter = b.Model.LowerName + "_id"
	}

	owners, ids := ownerKeys(b.Records)
	groups := map[string][]any{}
	if len(ids) > 0 {
		rows, err := b.backend().FindByFilter(ctx, b.Field.Schema, filter, ids)
		if err != nil {
			return b.resolutionError(err)
		}
		clients, err := b.Project(ctx, rows)
		if err != nil {
			return err
		}
		for i, row := range rows {
			v, _ := row.Lookup(filter)
			if key, ok := record.Key(v); ok {
				groups[key] = append(groups[key], clients[i])
			}
		}
	}

	for i, rec := range b.Records {
		b.Set(rec, listOrEmpty(groups[owners[i]]))
	}
	return nil
}

// AssociationFunc computes an association for a batch of owner ids with one
// call. The result is keyed by owner id; owners missing from it get an empty
// list. Keys match ids by key form, so int and int64 keys are equal.
type AssociationFunc func(ctx context.Context, req *Request, ids []any, sub []query.Field) (map[any][]any, error)

// Association resolves a field through an AssociationFunc.
type Association struct {
	Func AssociationFunc
}

func (Association) Strategy() string { return StrategyAssociation }

func (r Association) Resolve(ctx context.Context, b *Batch) error {
	if r.Func == nil {
		return apierr.Definition(b.Model.Name, "no association function for field %q", b.Field.Key)
	}
	owners, ids := ownerKeys(b.Records)
	groups := map[string][]any{}
	if len(ids) > 0 {
		result, err := r.Func(ctx, b.Request, ids, b.Field.Sub)
		if err != nil {
			return b.resolutionError(err)
		}
		for k, vs := range result {
			if key, ok := record.Key(k); ok {
				groups[key] = append(groups[key], vs...)
			}
		}
	}

	for i, rec := range b.Records {
		b.Set(rec, listOrEmpty(groups[owners[i]]))
	}
	return nil
}

// ownerKeys returns each record's id key and the distinct raw ids.
func ownerKeys(recs []*record.ServerRecord) (keys []string, ids []any) {
	keys = make([]string, len(recs))
	seen := make(map[string]bool)
	for i, rec := range recs {
		v := rec.ID()
		key, ok := record.Key(v)
		if !ok {
			continue
		}
		keys[i] = key
		if !seen[key] {
			seen[key] = true
			ids = append(ids, v)
		}
	}
	return keys, ids
}

func listOrEmpty(vs []any) []any {
	if vs == nil {
		return []any{}
	}
	return vs
}
