package projection

import (
	"context"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// Backend is the storage lookup surface the resolvers batch against.
// Implemented by store.Store, mongostore.Store and testutil.MemoryBackend.
type Backend interface {
	FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error)
	FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error)
}

// Lister is implemented by backends that can run arbitrary lookups.
// Engine.Find needs it for filtered and paged listings.
type Lister interface {
	Find(ctx context.Context, q queryir.Query) ([]record.Row, error)
}

// Writer is implemented by backends that can persist staged edits.
type Writer interface {
	Update(ctx context.Context, model *schema.Schema, id any, changes map[string]any) error
}
