package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/selectapi/internal/queryir"
)

// Command is a compiled lookup: the collection to read, the filter document
// and the paging options.
type Command struct {
	Collection string
	Filter     bson.D
	Sort       bson.D
	Limit      int64
	Skip       int64
}

// Compile converts a validated query to a find command.
//
// Documents are always sorted by _id. Inserted documents get a fresh
// ObjectID, so _id order is insertion order.
func Compile(q queryir.Query) (Command, error) {
	if res := queryir.Validate(q); !res.OK() {
		return Command{}, fmt.Errorf("invalid query: %w", res.Err())
	}
	sel, ok := q.(queryir.Select)
	if !ok {
		return Command{}, fmt.Errorf("unsupported query type: %T", q)
	}

	cmd := Command{
		Collection: sel.Model,
		Filter:     bson.D{},
		Sort:       bson.D{{Key: "_id", Value: 1}},
		Limit:      int64(sel.Limit),
		Skip:       int64(sel.Offset),
	}
	if sel.Filter != nil {
		filter, err := compilePredicate(sel.Filter)
		if err != nil {
			return Command{}, err
		}
		cmd.Filter = filter
	}
	return cmd, nil
}

func compilePredicate(p queryir.Predicate) (bson.D, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return bson.D{{Key: pred.Field, Value: pred.Value}}, nil
	case queryir.In:
		values := bson.A{}
		for _, v := range pred.Values {
			if v != nil {
				values = append(values, v)
			}
		}
		return bson.D{{Key: pred.Field, Value: bson.D{{Key: "$in", Value: values}}}}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return bson.D{}, nil
		}
		clauses := make(bson.A, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			doc, err := compilePredicate(sub)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, doc)
		}
		return bson.D{{Key: "$and", Value: clauses}}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}
