package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedInterfaces(t *testing.T) {
	var q Query = Select{Model: "Post"}
	_, ok := q.(Select)
	assert.True(t, ok)

	preds := []Predicate{Equals{}, In{}, And{}}
	assert.Len(t, preds, 3)
}

func TestByIDs(t *testing.T) {
	q := ByIDs("User", "id", []any{int64(1), int64(2)})
	assert.Equal(t, "User", q.Model)
	assert.Equal(t, In{Field: "id", Values: []any{int64(1), int64(2)}}, q.Filter)

	f := ByFilter("Comment", "post_id", []any{"a"})
	assert.Equal(t, In{Field: "post_id", Values: []any{"a"}}, f.Filter)
}

func TestValidate_OK(t *testing.T) {
	res := Validate(Select{
		Model: "Post",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "status", Value: "published"},
			In{Field: "meta.author_id", Values: []any{int64(1), 2.5, true, time.Now()}},
			Equals{Field: "deleted", Value: nil},
		}},
		Limit: 10,
	})
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.Err())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		msg   string
	}{
		{"nil", nil, "nil query"},
		{"no model", Select{}, "select without model"},
		{"bad path", Select{Model: "Post", Filter: Equals{Field: "a; DROP", Value: 1}}, "invalid field path"},
		{"non-scalar", Select{Model: "Post", Filter: In{Field: "tags", Values: []any{[]any{1}}}}, "non-scalar"},
		{"negative limit", Select{Model: "Post", Limit: -1}, "negative limit"},
		{"pointer select", &Select{Model: "Post", Offset: -2}, "negative offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.query)
			require.False(t, res.OK())
			assert.Contains(t, res.Errors[0], tt.msg)
			assert.Error(t, res.Err())
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	res := Validate(Select{Model: "Post", Filter: &In{Field: "id", Values: []any{nil}}})
	assert.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "never matches")

	res = Validate(Select{Model: "Post", Filter: In{Field: "id"}})
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "empty set")
}
