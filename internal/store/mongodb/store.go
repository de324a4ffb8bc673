// Package mongodb implements the store on MongoDB. The store's primitives
// map one-to-one onto the driver: read-one by key, conditional UpdateOne
// for the lock, upsert for lazy creation, DeleteMany for reset.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/toolsascode/lockstep/internal/store"
)

// DefaultCollection is the default name of the control collection
const DefaultCollection = "lockstep_control"

// Store implements store.Store for MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	coll   *mongo.Collection
}

// controlDoc is the persisted layout of the control record
type controlDoc struct {
	ID       string     `bson:"_id"`
	Version  int64      `bson:"version"`
	Locked   bool       `bson:"locked"`
	LockedAt *time.Time `bson:"lockedAt,omitempty"`
}

// New connects to MongoDB. An empty collection name selects
// DefaultCollection.
func New(ctx context.Context, uri, database, collection string) (*Store, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client: client,
		db:     db,
		coll:   db.Collection(collection),
	}, nil
}

// Load reads the control record, upserting {version: 0, locked: false}
// when absent.
func (s *Store) Load(ctx context.Context) (store.Record, error) {
	filter := bson.M{"_id": store.ControlKey}
	update := bson.M{"$setOnInsert": bson.M{"version": int64(0), "locked": false}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc controlDoc
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return store.Record{}, fmt.Errorf("failed to load control record: %w", err)
	}

	rec := store.Record{Version: doc.Version, Locked: doc.Locked}
	if doc.LockedAt != nil {
		rec.LockedAt = *doc.LockedAt
	}
	return rec, nil
}

// AcquireLock flips the lock via a conditional UpdateOne. Exactly one of
// any number of racing callers observes a modified document.
func (s *Store) AcquireLock(ctx context.Context, now time.Time, lease time.Duration) (bool, error) {
	if _, err := s.Load(ctx); err != nil {
		return false, err
	}

	filter := bson.M{"_id": store.ControlKey, "locked": false}
	if lease > 0 {
		filter = bson.M{
			"_id": store.ControlKey,
			"$or": []bson.M{
				{"locked": false},
				{"lockedAt": bson.M{"$lt": now.Add(-lease)}},
			},
		}
	}

	update := bson.M{"$set": bson.M{"locked": true, "lockedAt": now}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// SetVersion unconditionally updates the recorded version
func (s *Store) SetVersion(ctx context.Context, version int64) error {
	filter := bson.M{"_id": store.ControlKey}
	update := bson.M{"$set": bson.M{"version": version}}
	if _, err := s.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

// Unlock unconditionally clears the lock flag
func (s *Store) Unlock(ctx context.Context) error {
	filter := bson.M{"_id": store.ControlKey}
	update := bson.M{"$set": bson.M{"locked": false}, "$unset": bson.M{"lockedAt": ""}}
	if _, err := s.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Reset deletes every document in the control collection
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("failed to reset control collection: %w", err)
	}
	return nil
}

// Exec runs a migration script, interpreted as an extended-JSON database
// command document.
func (s *Store) Exec(ctx context.Context, script string) error {
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(script), false, &cmd); err != nil {
		return fmt.Errorf("invalid migration command document: %w", err)
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("failed to run migration command: %w", err)
	}
	return nil
}

// Ping verifies the backend is accessible
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
