package querysql

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/selectapi/internal/queryir"
)

func TestCompile_SelectAll(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{Model: "Post"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, data FROM records WHERE model = ? ORDER BY seq ASC, id ASC COLLATE BINARY", sql)
	assert.Equal(t, []any{"Post"}, params)
}

func TestCompile_In(t *testing.T) {
	q := queryir.ByFilter("Comment", "post_id", []any{int64(1), 2, nil, json.Number("3")})
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data FROM records WHERE model = ? AND json_extract(data, ?) IN (?, ?, ?) ORDER BY seq ASC, id ASC COLLATE BINARY",
		sql)
	assert.Equal(t, []any{"Comment", "$.post_id", int64(1), int64(2), int64(3)}, params)
}

func TestCompile_ByIDsUsesKeyColumn(t *testing.T) {
	q := queryir.ByIDs("User", "user_id", []any{int64(1), 2, nil, json.Number("3"), "a"})
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data FROM records WHERE model = ? AND id IN (?, ?, ?, ?) ORDER BY seq ASC, id ASC COLLATE BINARY",
		sql)
	assert.Equal(t, []any{"User", "1", "2", "3", "a"}, params)

	sql, params, err = NewSQLCompiler().Compile(queryir.ByIDs("User", "id", nil))
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE model = ? AND 1 = 0 ORDER BY")
	assert.Equal(t, []any{"User"}, params)
}

func TestCompile_IDFieldInsideAndUsesJSONPath(t *testing.T) {
	q := queryir.Select{
		Model:   "User",
		IDField: "id",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.In{Field: "id", Values: []any{int64(1)}},
		}},
	}
	sql, _, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.Contains(t, sql, "(json_extract(data, ?) IN (?))")
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.ByFilter("Comment", "post_id", nil))
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE model = ? AND 1 = 0 ORDER BY")
	assert.Equal(t, []any{"Comment"}, params)
}

func TestCompile_AndEqualsAndPaging(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := queryir.Select{
		Model: "Post",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "meta.published", Value: true},
			queryir.Equals{Field: "created", Value: ts},
			queryir.Equals{Field: "deleted", Value: nil},
		}},
		Limit:  10,
		Offset: 20,
	}
	sql, params, err := NewSQLCompiler().Compile(&q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data FROM records WHERE model = ? AND (json_extract(data, ?) = ? AND json_extract(data, ?) = ? AND json_extract(data, ?) IS NULL) ORDER BY seq ASC, id ASC COLLATE BINARY LIMIT ? OFFSET ?",
		sql)
	assert.Equal(t, []any{"Post", "$.meta.published", int64(1), "$.created", "2024-01-01T00:00:00Z", "$.deleted", 10, 20}, params)
}

func TestCompile_OffsetWithoutLimit(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(queryir.Select{Model: "Post", Offset: 5})
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT -1 OFFSET ?")
	assert.Equal(t, []any{"Post", 5}, params)
}

func TestCompile_RejectsInvalid(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile(queryir.Select{Model: "Post", Filter: queryir.Equals{Field: "x') OR 1=1 --", Value: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field path")

	_, _, err = NewSQLCompiler().Compile(nil)
	require.Error(t, err)
}

func TestCompile_CustomTable(t *testing.T) {
	c := &SQLCompiler{Table: "archive"}
	sql, _, err := c.Compile(queryir.Select{Model: "Post"})
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM archive WHERE")
}
