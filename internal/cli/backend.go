package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/selectapi/internal/compiler"
	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/projection"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
	"github.com/roach88/selectapi/internal/store"
	"github.com/roach88/selectapi/internal/store/mongostore"
)

// StoreOptions selects the record store. Exactly one of Database and
// MongoURI must be set.
type StoreOptions struct {
	Database string // SQLite file path
	MongoURI string
	MongoDB  string // MongoDB database name
}

// addStoreFlags registers the store selection flags on cmd.
func addStoreFlags(cmd *cobra.Command, opts *StoreOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.MongoURI, "mongo-uri", "", "MongoDB connection URI")
	cmd.Flags().StringVar(&opts.MongoDB, "mongo-db", "selectapi", "MongoDB database name")
	cmd.MarkFlagsMutuallyExclusive("db", "mongo-uri")
}

// recordStore is the surface both store implementations provide.
type recordStore interface {
	projection.Backend
	projection.Lister
	projection.Writer
	Insert(ctx context.Context, model *schema.Schema, row record.Row) (bool, error)
	Close() error
}

// openStore opens the selected store. MongoDB collections get their id
// indexes created for every model in the catalog.
func openStore(ctx context.Context, opts StoreOptions, catalog *compiler.Catalog, logger *slog.Logger) (recordStore, error) {
	switch {
	case opts.Database != "" && opts.MongoURI != "":
		return nil, fmt.Errorf("--db and --mongo-uri cannot be combined")
	case opts.Database != "":
		st, err := store.Open(opts.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", "driver", "sqlite", "path", opts.Database)
		return st, nil
	case opts.MongoURI != "":
		st, err := mongostore.Open(ctx, opts.MongoURI, opts.MongoDB, logger)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureIndexes(ctx, catalog.Models()...); err != nil {
			_ = st.Close()
			return nil, err
		}
		logger.Info("store opened", "driver", "mongo", "database", opts.MongoDB)
		return st, nil
	default:
		return nil, fmt.Errorf("one of --db or --mongo-uri is required")
	}
}

// newEngine binds the catalog to st. Association fields read a list of
// target ids stored on the owner under the field name and project the
// targets with the engine itself.
func newEngine(catalog *compiler.Catalog, st recordStore, opts ...projection.Option) (*projection.Engine, error) {
	bridge, err := catalog.Bridge()
	if err != nil {
		return nil, err
	}

	var eng *projection.Engine
	for _, owner := range catalog.Models() {
		for _, f := range owner.Fields() {
			if f.Kind != field.Association {
				continue
			}
			target, err := catalog.Registry.Resolve(f)
			if err != nil {
				return nil, err
			}
			fn := storedAssociation(st, owner, target, f.Name, func() *projection.Engine { return eng })
			if err := bridge.Associate(owner.Name, f.Name, fn); err != nil {
				return nil, err
			}
		}
	}
	if err := bridge.Check(catalog.Registry); err != nil {
		return nil, err
	}

	eng = projection.New(bridge, st, opts...)
	return eng, nil
}

func storedAssociation(st projection.Backend, owner, target *schema.Schema, name string, engine func() *projection.Engine) projection.AssociationFunc {
	return func(ctx context.Context, req *projection.Request, ids []any, sub []query.Field) (map[any][]any, error) {
		owners, err := st.FindByIDs(ctx, owner, ids)
		if err != nil {
			return nil, err
		}

		var targetIDs []any
		refs := make(map[any][]string, len(owners))
		for _, row := range owners {
			list, _ := row[name].([]any)
			for _, tid := range list {
				key, ok := record.Key(tid)
				if !ok {
					continue
				}
				refs[row[owner.IDField()]] = append(refs[row[owner.IDField()]], key)
				targetIDs = append(targetIDs, tid)
			}
		}
		if len(targetIDs) == 0 {
			return nil, nil
		}

		rows, err := st.FindByIDs(ctx, target, targetIDs)
		if err != nil {
			return nil, err
		}
		recs, err := engine().Project(ctx, req, target, record.NewServerRecords(target, rows), sub)
		if err != nil {
			return nil, err
		}
		// Nested selections carry no implicit id, so match by row.
		byKey := make(map[string]any, len(recs))
		for i, rec := range recs {
			if key, ok := record.Key(rows[i][target.IDField()]); ok {
				byKey[key] = rec
			}
		}

		out := make(map[any][]any, len(refs))
		for ownerID, keys := range refs {
			for _, key := range keys {
				if rec, ok := byKey[key]; ok {
					out[ownerID] = append(out[ownerID], rec)
				}
			}
		}
		return out, nil
	}
}
