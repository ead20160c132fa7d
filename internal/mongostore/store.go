// File path: internal/mongostore/store.go
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
)

// Store owns a MongoDB client bound to one database.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect dials the deployment described by cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("mongo url required")
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Store{client: client, database: client.Database(cfg.Database)}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// EnsureIndexes creates the unique id and plan_id indexes on the collection.
func (s *Store) EnsureIndexes(ctx context.Context, name string) error {
	_, err := s.database.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "plan_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create indexes on %s: %w", name, err)
	}
	return nil
}

// Collection returns a docstore.Collection over the named collection.
func (s *Store) Collection(name string) *Collection {
	trimmed := strings.TrimSpace(name)
	return &Collection{name: trimmed, coll: s.database.Collection(trimmed), client: s.client}
}

// Collection adapts *mongo.Collection to docstore.Collection.
type Collection struct {
	name   string
	coll   *mongo.Collection
	client *mongo.Client
}

var _ docstore.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	normalized, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, toBSON(normalized)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", docstore.ErrDuplicateKey, err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	query, err := filterDoc(filter)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	if err := c.coll.FindOne(ctx, query).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNoDocuments
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return fromBSON(raw), nil
}

func (c *Collection) Find(ctx context.Context, limit int) ([]docstore.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cursor.Close(ctx)
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	docs := make([]docstore.Document, 0, len(raw))
	for _, item := range raw {
		docs = append(docs, fromBSON(item))
	}
	return docs, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (docstore.UpdateResult, error) {
	query, err := filterDoc(filter)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	normalized, err := docstore.Normalize(set)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	res, err := c.coll.UpdateOne(ctx, query, bson.M{"$set": toBSON(normalized)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docstore.UpdateResult{}, fmt.Errorf("%w: %v", docstore.ErrDuplicateKey, err)
		}
		return docstore.UpdateResult{}, fmt.Errorf("update document: %w", err)
	}
	return docstore.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	query, err := filterDoc(filter)
	if err != nil {
		return 0, err
	}
	res, err := c.coll.DeleteOne(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return res.DeletedCount, nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func filterDoc(filter docstore.Filter) (bson.M, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return bson.M{filter.Field: toBSONValue(filter.Value)}, nil
}
