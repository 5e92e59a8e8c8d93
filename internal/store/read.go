package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// Find runs a lookup and returns the matching rows in storage order.
func (s *Store) Find(ctx context.Context, q queryir.Query) ([]record.Row, error) {
	query, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer rows.Close()

	var out []record.Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find: iterate rows: %w", err)
	}
	return out, nil
}

// FindByIDs returns the records of model whose id is in ids.
// Unknown ids are skipped.
func (s *Store) FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error) {
	return s.Find(ctx, queryir.ByIDs(model.Name, model.IDField(), ids))
}

// FindByFilter returns the records of model whose field is in values.
func (s *Store) FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error) {
	return s.Find(ctx, queryir.ByFilter(model.Name, field, values))
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, model *schema.Schema, id any) (record.Row, error) {
	key, ok := record.Key(id)
	if !ok {
		return nil, fmt.Errorf("get %s: nil id", model.Name)
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE model = ? AND id = ?", model.Name, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get %s %s: %w", model.Name, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", model.Name, key, err)
	}
	return unmarshalRow(data)
}

// Count returns the number of records of model.
func (s *Store) Count(ctx context.Context, model *schema.Schema) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE model = ?", model.Name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", model.Name, err)
	}
	return n, nil
}

func scanRow(rows *sql.Rows) (record.Row, error) {
	var id, data string
	if err := rows.Scan(&id, &data); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	row, err := unmarshalRow(data)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return row, nil
}
