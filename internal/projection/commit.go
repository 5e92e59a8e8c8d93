package projection

import (
	"context"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/record"
)

// Commit writes the staged edits of recs through the backend and clears
// them. Records without edits are skipped. Returns how many records were
// written; on error, records before the failing one stay committed.
func (e *Engine) Commit(ctx context.Context, req *Request, recs []*record.ClientRecord) (int, error) {
	w, ok := e.backend.(Writer)
	if !ok {
		return 0, apierr.Internal("backend %T cannot write records", e.backend)
	}
	req = e.request(req)

	n := 0
	for _, rec := range recs {
		if !rec.Changed() {
			continue
		}
		model := rec.Model()
		if model.ReadOnly {
			return n, apierr.Permission(model.Name, "model is read-only")
		}
		if _, err := e.bridge.Lookup(model); err != nil {
			return n, err
		}
		id := rec.ID()
		if id == nil {
			return n, apierr.Validation("cannot commit %s without its %s", model.Name, model.IDField())
		}
		if err := w.Update(ctx, model, id, rec.Changes()); err != nil {
			return n, apierr.Resolution(model.Name, "", err)
		}
		e.logger.Debug("committed record",
			"request", req.ID,
			"model", model.Name,
			"id", id)
		rec.Discard()
		n++
	}
	return n, nil
}
