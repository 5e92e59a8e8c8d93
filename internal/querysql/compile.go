// Package querysql compiles queryir lookups to parameterized SQLite SQL over
// the record table:
//
//	records(seq INTEGER PRIMARY KEY, model TEXT, id TEXT, data TEXT)
//
// Field paths address the JSON document in data through json_extract, with
// the path itself passed as a parameter. Lookups by id use the id column,
// which holds the record key.
package querysql

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
)

// SQLCompiler compiles queryir to parameterized SQL for SQLite.
//
// Every query is ordered by insertion sequence then id, so repeated
// lookups return identical row order. All values and field paths are
// parameterized, never interpolated.
type SQLCompiler struct {
	// Table is the record table name.
	Table string
}

// NewSQLCompiler creates a compiler for the default records table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "records"}
}

// Compile converts a query to SQL selecting (id, data).
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.OK() {
		return "", nil, res.Err()
	}
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	where := "model = ?"
	params := []any{q.Model}
	if in, ok := keyLookup(q); ok {
		keySQL, keyParams := c.compileKeyIn(in)
		where += " AND " + keySQL
		params = append(params, keyParams...)
	} else if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	sql := fmt.Sprintf("SELECT id, data FROM %s WHERE %s ORDER BY %s",
		c.Table, where, c.stableOrderKey())

	switch {
	case q.Limit > 0:
		sql += " LIMIT ? OFFSET ?"
		params = append(params, q.Limit, q.Offset)
	case q.Offset > 0:
		sql += " LIMIT -1 OFFSET ?"
		params = append(params, q.Offset)
	}
	return sql, params, nil
}

// keyLookup reports whether q selects records by id only, in which case
// the id column (the record key) serves it.
func keyLookup(q queryir.Select) (queryir.In, bool) {
	if q.IDField == "" {
		return queryir.In{}, false
	}
	switch in := q.Filter.(type) {
	case queryir.In:
		return in, in.Field == q.IDField
	case *queryir.In:
		return *in, in.Field == q.IDField
	}
	return queryir.In{}, false
}

func (c *SQLCompiler) compileKeyIn(in queryir.In) (string, []any) {
	var params []any
	var marks []string
	for _, v := range in.Values {
		key, ok := record.Key(v)
		if !ok {
			continue
		}
		marks = append(marks, "?")
		params = append(params, key)
	}
	if len(marks) == 0 {
		return "1 = 0", nil
	}
	return fmt.Sprintf("id IN (%s)", strings.Join(marks, ", ")), params
}

// stableOrderKey returns the ORDER BY clause. Every query uses it.
func (c *SQLCompiler) stableOrderKey() string {
	return "seq ASC, id ASC COLLATE BINARY"
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if eq.Value == nil {
		return "json_extract(data, ?) IS NULL", []any{jsonPath(eq.Field)}, nil
	}
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return "json_extract(data, ?) = ?", []any{jsonPath(eq.Field), param}, nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	params := []any{jsonPath(in.Field)}
	var marks []string
	for _, v := range in.Values {
		if v == nil {
			continue
		}
		param, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %s: %w", in.Field, err)
		}
		marks = append(marks, "?")
		params = append(params, param)
	}
	if len(marks) == 0 {
		return "1 = 0", nil, nil
	}
	return fmt.Sprintf("json_extract(data, ?) IN (%s)", strings.Join(marks, ", ")), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

func jsonPath(field string) string {
	return "$." + field
}

// toParam converts a scalar to the form json_extract returns for it.
// Booleans are stored in JSON as true/false and extracted as 1/0.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}
