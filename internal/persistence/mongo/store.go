// Package mongo stores room documents in a MongoDB collection and streams
// changes through change streams. Change streams need a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/meetsync/internal/persistence"
)

// Config holds connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig returns settings for uri and database.
func DefaultConfig(uri, database string) Config {
	return Config{
		URI:            uri,
		Database:       database,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    100,
	}
}

// roomDocument keys the room by its id.
type roomDocument struct {
	ID               string `bson:"_id"`
	persistence.Room `bson:",inline"`
}

type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  *roomDocument `bson:"fullDocument"`
}

// Store is a persistence.RoomStore backed by MongoDB.
type Store struct {
	client *mongo.Client
	rooms  *mongo.Collection
	logger *slog.Logger
}

var _ persistence.RoomStore = (*Store)(nil)

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	logger = logger.With("component", "mongo", "database", cfg.Database)
	logger.InfoContext(ctx, "connected to mongodb")
	return New(client, cfg.Database, logger), nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		rooms:  client.Database(database).Collection(persistence.Collection),
		logger: logger,
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	return nil
}

// PutRoom creates or replaces the document.
func (s *Store) PutRoom(ctx context.Context, room persistence.Room) error {
	doc := roomDocument{ID: room.ID, Room: room.Clone().Normalize()}
	_, err := s.rooms.ReplaceOne(ctx, bson.D{{Key: "_id", Value: room.ID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: put room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom reads one document.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var doc roomDocument
	err := s.rooms.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return persistence.Room{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Room{}, fmt.Errorf("mongo: get room %s: %w", id, err)
	}
	return doc.Room.Normalize(), nil
}

// UpdateRoom translates the updates into one update document.
func (s *Store) UpdateRoom(ctx context.Context, id string, updates []persistence.FieldUpdate) error {
	update, err := updateDocument(updates)
	if err != nil {
		return err
	}
	if len(update) == 0 {
		_, err := s.GetRoom(ctx, id)
		return err
	}
	result, err := s.rooms.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("mongo: update room %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListRooms returns every document ordered by id.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	cursor, err := s.rooms.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list rooms: %w", err)
	}
	defer cursor.Close(ctx)

	rooms := make([]persistence.Room, 0)
	for cursor.Next(ctx) {
		var doc roomDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode room: %w", err)
		}
		rooms = append(rooms, doc.Room.Normalize())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: list rooms: %w", err)
	}
	return rooms, nil
}

// WatchRoom opens a change stream before reading the current document so no
// change between the read and the stream start is lost.
func (s *Store) WatchRoom(ctx context.Context, id string, fn func(persistence.Room)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: id}}}},
	}
	stream, err := s.rooms.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("mongo: watch room %s: %w", id, err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	room, err := s.GetRoom(ctx, id)
	switch {
	case err == nil:
		fn(room)
	case errors.Is(err, persistence.ErrNotFound):
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}

	for stream.Next(ctx) {
		var event changeEvent
		if err := stream.Decode(&event); err != nil {
			return fmt.Errorf("mongo: decode change: %w", err)
		}
		if event.FullDocument == nil {
			continue
		}
		fn(event.FullDocument.Room.Normalize())
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("mongo: watch room %s: %w", id, err)
	}
	return nil
}

// updateDocument maps field updates onto $set and $addToSet.
func updateDocument(updates []persistence.FieldUpdate) (bson.D, error) {
	if err := persistence.ValidateUpdates(updates); err != nil {
		return nil, err
	}
	var set, addToSet bson.D
	for _, u := range updates {
		switch u.Op {
		case persistence.OpSet:
			set = append(set, bson.E{Key: u.Path, Value: u.Value})
		case persistence.OpArrayUnion:
			addToSet = append(addToSet, bson.E{Key: u.Path, Value: u.Value})
		}
	}
	var update bson.D
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(addToSet) > 0 {
		update = append(update, bson.E{Key: "$addToSet", Value: addToSet})
	}
	return update, nil
}
