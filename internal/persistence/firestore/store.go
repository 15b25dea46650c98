// Package firestore stores room documents in Cloud Firestore. Subscriptions
// use document snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/meetsync/internal/persistence"
)

// Store is a persistence.RoomStore backed by Firestore.
type Store struct {
	client *firestore.Client
	rooms  *firestore.CollectionRef
	logger *slog.Logger
}

var _ persistence.RoomStore = (*Store)(nil)

// Connect initialises a Firebase app for projectID and opens its Firestore
// client. credentialsFile may be empty to use application default
// credentials or the emulator named by FIRESTORE_EMULATOR_HOST.
func Connect(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: open client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return New(client, logger.With("component", "firestore", "project", projectID)), nil
}

// New wraps an existing client.
func New(client *firestore.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, rooms: client.Collection(persistence.Collection), logger: logger}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// PutRoom creates or overwrites rooms/{id}.
func (s *Store) PutRoom(ctx context.Context, room persistence.Room) error {
	if _, err := s.rooms.Doc(room.ID).Set(ctx, room.Clone().Normalize()); err != nil {
		return fmt.Errorf("firestore: put room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom reads rooms/{id}.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	snap, err := s.rooms.Doc(id).Get(ctx)
	if err != nil {
		return persistence.Room{}, mapError(err, "get room "+id)
	}
	return decode(snap)
}

// UpdateRoom issues one Update call, which fails when the document is absent.
func (s *Store) UpdateRoom(ctx context.Context, id string, updates []persistence.FieldUpdate) error {
	fsUpdates, err := toFirestoreUpdates(updates)
	if err != nil {
		return err
	}
	if len(fsUpdates) == 0 {
		_, err := s.GetRoom(ctx, id)
		return err
	}
	if _, err := s.rooms.Doc(id).Update(ctx, fsUpdates); err != nil {
		return mapError(err, "update room "+id)
	}
	return nil
}

// ListRooms reads the whole collection.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	snaps, err := s.rooms.OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: list rooms: %w", err)
	}
	rooms := make([]persistence.Room, 0, len(snaps))
	for _, snap := range snaps {
		room, err := decode(snap)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// WatchRoom listens to rooms/{id}. The first snapshot is the current state.
func (s *Store) WatchRoom(ctx context.Context, id string, fn func(persistence.Room)) error {
	it := s.rooms.Doc(id).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("firestore: watch room %s: %w", id, err)
		}
		if !snap.Exists() {
			continue
		}
		room, err := decode(snap)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable snapshot", "room_id", id, "error", err)
			continue
		}
		fn(room)
	}
}

func decode(snap *firestore.DocumentSnapshot) (persistence.Room, error) {
	var room persistence.Room
	if err := snap.DataTo(&room); err != nil {
		return persistence.Room{}, fmt.Errorf("firestore: decode room %s: %w", snap.Ref.ID, err)
	}
	if room.ID == "" {
		room.ID = snap.Ref.ID
	}
	return room.Normalize(), nil
}

func mapError(err error, op string) error {
	if status.Code(err) == codes.NotFound {
		return persistence.ErrNotFound
	}
	return fmt.Errorf("firestore: %s: %w", op, err)
}

// toFirestoreUpdates addresses schedules by FieldPath so user ids are never
// parsed as dotted paths.
func toFirestoreUpdates(updates []persistence.FieldUpdate) ([]firestore.Update, error) {
	if err := persistence.ValidateUpdates(updates); err != nil {
		return nil, err
	}
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		var value any = u.Value
		if u.Op == persistence.OpArrayUnion {
			value = firestore.ArrayUnion(u.Value)
		}
		out = append(out, firestore.Update{FieldPath: firestore.FieldPath(u.Segments()), Value: value})
	}
	return out, nil
}
