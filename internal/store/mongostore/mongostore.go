// Package mongostore is the MongoDB storage backend.
//
// Each model is one collection named after the model. The record id lives in
// the model's id field next to the other stored fields; a unique index on
// that field makes inserts idempotent.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

const connectTimeout = 10 * time.Second

// Store reads and writes records in one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Open connects to uri and pings the server.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Debug("mongo store opened", "database", database)
	return &Store{client: client, db: client.Database(database), logger: logger}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique id index of each model's collection.
func (s *Store) EnsureIndexes(ctx context.Context, models ...*schema.Schema) error {
	for _, m := range models {
		_, err := s.db.Collection(m.Name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: m.IDField(), Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("ensure index %s.%s: %w", m.Name, m.IDField(), err)
		}
	}
	return nil
}

// Find runs a lookup and returns the matching rows in insertion order.
func (s *Store) Find(ctx context.Context, q queryir.Query) ([]record.Row, error) {
	cmd, err := Compile(q)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	opts := options.Find().SetSort(cmd.Sort)
	if cmd.Limit > 0 {
		opts.SetLimit(cmd.Limit)
	}
	if cmd.Skip > 0 {
		opts.SetSkip(cmd.Skip)
	}

	cursor, err := s.db.Collection(cmd.Collection).Find(ctx, cmd.Filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", cmd.Collection, err)
	}
	defer cursor.Close(ctx)

	var out []record.Row
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("find %s: decode: %w", cmd.Collection, err)
		}
		out = append(out, toRow(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("find %s: cursor: %w", cmd.Collection, err)
	}
	s.logger.Debug("mongo find", "collection", cmd.Collection, "rows", len(out))
	return out, nil
}

// FindByIDs returns the records of model whose id is in ids.
func (s *Store) FindByIDs(ctx context.Context, model *schema.Schema, ids []any) ([]record.Row, error) {
	return s.Find(ctx, queryir.ByIDs(model.Name, model.IDField(), ids))
}

// FindByFilter returns the records of model whose field is in values.
func (s *Store) FindByFilter(ctx context.Context, model *schema.Schema, field string, values []any) ([]record.Row, error) {
	return s.Find(ctx, queryir.ByFilter(model.Name, field, values))
}

// Insert stores a new record unless one with the same id exists.
func (s *Store) Insert(ctx context.Context, model *schema.Schema, row record.Row) (inserted bool, err error) {
	id, ok := row[model.IDField()]
	if !ok || id == nil {
		return false, fmt.Errorf("insert %s: missing id field %q", model.Name, model.IDField())
	}
	doc := bson.M{}
	for k, v := range row {
		doc[k] = v
	}
	res, err := s.db.Collection(model.Name).UpdateOne(ctx,
		bson.D{{Key: model.IDField(), Value: id}},
		bson.D{{Key: "$setOnInsert", Value: doc}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", model.Name, err)
	}
	return res.UpsertedCount > 0, nil
}

// Update sets changes on the record with the given id.
func (s *Store) Update(ctx context.Context, model *schema.Schema, id any, changes map[string]any) error {
	if _, touchesID := changes[model.IDField()]; touchesID {
		return fmt.Errorf("update %s: id field is immutable", model.Name)
	}
	if len(changes) == 0 {
		return nil
	}
	set := bson.M{}
	for k, v := range changes {
		set[k] = v
	}
	res, err := s.db.Collection(model.Name).UpdateOne(ctx,
		bson.D{{Key: model.IDField(), Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", model.Name, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s %v: %w", model.Name, id, ErrNotFound)
	}
	return nil
}

// Remove deletes the records with the given ids.
func (s *Store) Remove(ctx context.Context, model *schema.Schema, ids []any) (int64, error) {
	cmd, err := Compile(queryir.ByIDs(model.Name, model.IDField(), ids))
	if err != nil {
		return 0, fmt.Errorf("remove: %w", err)
	}
	res, err := s.db.Collection(model.Name).DeleteMany(ctx, cmd.Filter)
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", model.Name, err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of records of model.
func (s *Store) Count(ctx context.Context, model *schema.Schema) (int, error) {
	n, err := s.db.Collection(model.Name).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", model.Name, err)
	}
	return int(n), nil
}
