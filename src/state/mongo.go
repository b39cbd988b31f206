// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/state/mongo.go
package state

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// mongoOpTimeout bounds every store operation so a hung database cannot block
// a ledger call forever. The engine itself carries no timeout semantics; this
// is the store-side contract.
const mongoOpTimeout = 10 * time.Second

// MongoStore is a document store backend over a MongoDB database. Collections
// map one-to-one onto the persisted ledger layout.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// NewMongoStore connects to MongoDB and returns a store over the named
// database.
// uri: Connection string (mongodb://...)
// database: Database holding the ledger collections
// log: Structured logger; zap.NewNop() is acceptable
func NewMongoStore(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("connected to mongodb", zap.String("database", database))
	return &MongoStore{
		client: client,
		db:     client.Database(database),
		log:    log,
	}, nil
}

// InsertOne appends a document to the collection.
func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	if _, err := s.db.Collection(collection).InsertOne(ctx, bson.M(doc)); err != nil {
		s.log.Error("insert failed", zap.String("collection", collection), zap.Error(err))
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

// FindOne returns the first document matching filter, or ErrNotFound.
func (s *MongoStore) FindOne(ctx context.Context, collection string, filter Filter) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bsonFilter(filter)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return cleanDocument(doc), nil
}

// Find returns documents matching filter, sorted and limited per opts.
func (s *MongoStore) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	findOpts := options.Find()
	if opts.SortField != "" {
		dir := -1
		if opts.Ascending {
			dir = 1
		}
		findOpts.SetSort(bson.D{{Key: opts.SortField, Value: dir}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, bsonFilter(filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []map[string]any
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document from %s: %w", collection, err)
		}
		docs = append(docs, cleanDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Count returns the number of documents matching filter.
func (s *MongoStore) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	n, err := s.db.Collection(collection).CountDocuments(ctx, bsonFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

// GroupSum buckets matching documents with an aggregation pipeline.
func (s *MongoStore) GroupSum(ctx context.Context, collection, groupField, sumField string, filter Filter) ([]GroupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	group := bson.D{
		{Key: "_id", Value: "$" + groupField},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}
	if sumField != "" {
		group = append(group, bson.E{Key: "total", Value: bson.D{{Key: "$sum", Value: "$" + sumField}}})
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bsonFilter(filter)}},
		{{Key: "$group", Value: group}},
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var out []GroupResult
	for cursor.Next(ctx) {
		var row struct {
			Key   any     `bson:"_id"`
			Count int64   `bson:"count"`
			Total float64 `bson:"total"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode aggregate row from %s: %w", collection, err)
		}
		out = append(out, GroupResult{
			Key:   fmt.Sprintf("%v", row.Key),
			Count: row.Count,
			Sum:   row.Total,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate aggregate of %s: %w", collection, err)
	}
	return out, nil
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// bsonFilter normalizes a Filter for the driver. A nil map would marshal as
// BSON null instead of the match-all empty document.
func bsonFilter(f Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}

// cleanDocument converts a decoded bson document into the store's plain map
// form: the storage id becomes a string, nested bson types flatten to
// JSON-like values.
func cleanDocument(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = cleanValue(v)
	}
	if id, ok := out["_id"].(primitive.ObjectID); ok {
		out["_id"] = id.Hex()
	}
	return out
}

// cleanValue recursively flattens bson container types.
func cleanValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return cleanDocument(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = cleanValue(e.Value)
		}
		return m
	case bson.A:
		arr := make([]any, len(t))
		for i, e := range t {
			arr[i] = cleanValue(e)
		}
		return arr
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
