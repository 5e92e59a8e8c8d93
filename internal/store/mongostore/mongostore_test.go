package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
)

func TestCompile_ByIDs(t *testing.T) {
	cmd, err := Compile(queryir.ByIDs("User", "id", []any{int64(1), int64(2)}))
	require.NoError(t, err)

	assert.Equal(t, "User", cmd.Collection)
	assert.Equal(t, bson.D{{Key: "id", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(2)}}}}}, cmd.Filter)
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, cmd.Sort)
	assert.Zero(t, cmd.Limit)
	assert.Zero(t, cmd.Skip)
}

func TestCompile_InSkipsNil(t *testing.T) {
	cmd, err := Compile(queryir.Select{
		Model:  "Post",
		Filter: queryir.In{Field: "author_id", Values: []any{nil, int64(3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "author_id", Value: bson.D{{Key: "$in", Value: bson.A{int64(3)}}}}}, cmd.Filter)
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	cmd, err := Compile(queryir.Select{Model: "Post", Filter: queryir.In{Field: "id"}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "id", Value: bson.D{{Key: "$in", Value: bson.A{}}}}}, cmd.Filter)
}

func TestCompile_AndAndPaging(t *testing.T) {
	cmd, err := Compile(queryir.Select{
		Model: "Post",
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "meta.owner_id", Value: int64(7)},
			queryir.Equals{Field: "deleted", Value: nil},
		}},
		Limit:  10,
		Offset: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "meta.owner_id", Value: int64(7)}},
		bson.D{{Key: "deleted", Value: nil}},
	}}}, cmd.Filter)
	assert.Equal(t, int64(10), cmd.Limit)
	assert.Equal(t, int64(20), cmd.Skip)
}

func TestCompile_EmptyAnd(t *testing.T) {
	cmd, err := Compile(queryir.Select{Model: "Post", Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, cmd.Filter)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(queryir.Select{})
	require.Error(t, err)

	_, err = Compile(nil)
	require.Error(t, err)
}

func TestToRow(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := bson.M{
		"_id":   bson.NewObjectID(),
		"id":    int32(4),
		"big":   int64(9007199254740993),
		"when":  bson.NewDateTimeFromTime(at),
		"tags":  bson.A{"a", int32(2)},
		"owner": bson.D{{Key: "id", Value: int32(7)}},
	}

	row := toRow(doc)

	assert.Equal(t, record.Row{
		"id":    int64(4),
		"big":   int64(9007199254740993),
		"when":  at,
		"tags":  []any{"a", int64(2)},
		"owner": map[string]any{"id": int64(7)},
	}, row)
}
