package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Insert stores a new record. The row must carry the model's id field.
// Uses ON CONFLICT DO NOTHING for idempotency; inserted reports whether a
// row was written.
func (s *Store) Insert(ctx context.Context, model *schema.Schema, row record.Row) (inserted bool, err error) {
	key, ok := record.Key(row[model.IDField()])
	if !ok {
		return false, fmt.Errorf("insert %s: missing id field %q", model.Name, model.IDField())
	}
	data, err := marshalRow(row)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", model.Name, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (model, id, data)
		VALUES (?, ?, ?)
		ON CONFLICT(model, id) DO NOTHING
	`, model.Name, key, data)
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", model.Name, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s %s: %w", model.Name, key, err)
	}
	return n > 0, nil
}

// Update merges changes into the stored record with the given id.
// The id field itself cannot be changed.
func (s *Store) Update(ctx context.Context, model *schema.Schema, id any, changes map[string]any) error {
	key, ok := record.Key(id)
	if !ok {
		return fmt.Errorf("update %s: nil id", model.Name)
	}
	if _, touchesID := changes[model.IDField()]; touchesID {
		return fmt.Errorf("update %s %s: id field is immutable", model.Name, key)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s %s: begin: %w", model.Name, key, err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM records WHERE model = ? AND id = ?", model.Name, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s %s: %w", model.Name, key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s %s: %w", model.Name, key, err)
	}

	row, err := unmarshalRow(data)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", model.Name, key, err)
	}
	maps.Copy(row, changes)
	merged, err := marshalRow(row)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", model.Name, key, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET data = ? WHERE model = ? AND id = ?", merged, model.Name, key,
	); err != nil {
		return fmt.Errorf("update %s %s: %w", model.Name, key, err)
	}
	return tx.Commit()
}

// Remove deletes the records with the given ids and returns how many existed.
func (s *Store) Remove(ctx context.Context, model *schema.Schema, ids []any) (int64, error) {
	var removed int64
	for _, id := range ids {
		key, ok := record.Key(id)
		if !ok {
			continue
		}
		res, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE model = ? AND id = ?", model.Name, key)
		if err != nil {
			return removed, fmt.Errorf("remove %s %s: %w", model.Name, key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("remove %s %s: %w", model.Name, key, err)
		}
		removed += n
	}
	return removed, nil
}
