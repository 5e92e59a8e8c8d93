package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/selectapi/internal/record"
)

// toRow converts a decoded document to a storage row. The driver's _id is
// dropped, int32 widens to int64 and BSON containers become plain maps and
// slices, so rows look the same as rows read from SQLite.
func toRow(doc bson.M) record.Row {
	row := make(record.Row, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		row[k] = normalize(v)
	}
	return row
}

func normalize(v any) any {
	switch val := v.(type) {
	case int32:
		return int64(val)
	case int:
		return int64(val)
	case bson.DateTime:
		return val.Time().UTC()
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = normalize(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = normalize(e)
		}
		return m
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
