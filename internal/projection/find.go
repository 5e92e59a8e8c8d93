package projection

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// Lookup selects the records Find projects. IDs take precedence over
// Filter; with neither, Find lists the model.
type Lookup struct {
	// IDs fetches these records, in this order. Unknown ids are skipped.
	IDs []any

	// Filter restricts a listing to records whose field equals the value.
	// Only the model's filter fields may be used.
	Filter map[string]any

	// Page bounds a listing. Ignored when IDs are given.
	Page query.Page
}

// Result is the output of Find.
type Result struct {
	Records []*record.ClientRecord

	// Page is the page that was read; zero for id lookups.
	Page query.Page
}

// Find fetches records of model from the backend and projects them.
func (e *Engine) Find(ctx context.Context, req *Request, model *schema.Schema, sel []query.Field, lk Lookup) (*Result, error) {
	if len(lk.IDs) > 0 {
		rows, err := e.backend.FindByIDs(ctx, model, lk.IDs)
		if err != nil {
			return nil, apierr.Resolution(model.Name, model.IDField(), err)
		}
		rows = inIDOrder(rows, model.IDField(), lk.IDs)
		recs, err := e.Project(ctx, req, model, record.NewServerRecords(model, rows), sel)
		if err != nil {
			return nil, err
		}
		return &Result{Records: recs}, nil
	}

	lister, ok := e.backend.(Lister)
	if !ok {
		return nil, apierr.Internal("backend %T cannot list records", e.backend)
	}
	page := lk.Page
	if page.Limit == 0 {
		page.Limit = query.DefaultLimit
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	filter, err := listFilter(model, lk.Filter)
	if err != nil {
		return nil, err
	}

	rows, err := lister.Find(ctx, queryir.Select{
		Model:  model.Name,
		Filter: filter,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, apierr.Resolution(model.Name, "", err)
	}
	recs, err := e.Project(ctx, req, model, record.NewServerRecords(model, rows), sel)
	if err != nil {
		return nil, err
	}
	return &Result{Records: recs, Page: page}, nil
}

func listFilter(model *schema.Schema, filter map[string]any) (queryir.Predicate, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(filter))
	for name := range filter {
		names = append(names, name)
	}
	slices.Sort(names)

	allowed := schema.Names(model.FilterFields())
	var bad []string
	preds := make([]queryir.Predicate, 0, len(names))
	for _, name := range names {
		if !slices.Contains(allowed, name) {
			bad = append(bad, name)
			continue
		}
		preds = append(preds, queryir.Equals{Field: name, Value: filter[name]})
	}
	if len(bad) > 0 {
		return nil, apierr.Validation("invalid filter field%s: %s", plural(bad), strings.Join(bad, ","))
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return queryir.And{Predicates: preds}, nil
}

// inIDOrder orders rows like ids. Rows whose id is not in ids are dropped.
func inIDOrder(rows []record.Row, idField string, ids []any) []record.Row {
	byKey := make(map[string]record.Row, len(rows))
	for _, row := range rows {
		if k, ok := record.Key(row[idField]); ok {
			byKey[k] = row
		}
	}
	out := make([]record.Row, 0, len(rows))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		k, ok := record.Key(id)
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		if row, ok := byKey[k]; ok {
			out = append(out, row)
		}
	}
	return out
}

func plural(names []string) string {
	if len(names) > 1 {
		return "s"
	}
	return ""
}
