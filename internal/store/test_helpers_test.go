package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/selectapi/internal/field"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// createTestStore creates a test store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func userSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Define(schema.Definition{
		Name: "User",
		Fields: []*field.Spec{
			field.New("id", field.Long, field.Default()),
			field.New("name", field.String, field.Default(), field.Modifiable()),
			field.New("zip", field.String),
		},
	})
	if err != nil {
		t.Fatalf("define User: %v", err)
	}
	return s
}

func postSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Define(schema.Definition{
		Name: "Post",
		Fields: []*field.Spec{
			field.New("id", field.Integer, field.Default()),
			field.New("title", field.String, field.Default(), field.Modifiable()),
			field.New("author_id", field.Long, field.Filter()),
		},
	})
	if err != nil {
		t.Fatalf("define Post: %v", err)
	}
	return s
}

// insertRows inserts rows and fails the test on any error or conflict.
func insertRows(t *testing.T, s *Store, model *schema.Schema, rows ...record.Row) {
	t.Helper()
	for _, row := range rows {
		inserted, err := s.Insert(context.Background(), model, row)
		if err != nil {
			t.Fatalf("Insert(%v) failed: %v", row, err)
		}
		if !inserted {
			t.Fatalf("Insert(%v) conflicted", row)
		}
	}
}
