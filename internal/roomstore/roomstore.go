// Package roomstore adapts a persistence document backend to the room store
// the application layer consumes.
package roomstore

import (
	"context"
	"fmt"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/slot"
)

// Store translates between application rooms and persisted room documents.
type Store struct {
	backend persistence.RoomStore
}

var _ application.RoomStore = (*Store)(nil)

// New wraps backend.
func New(backend persistence.RoomStore) *Store {
	return &Store{backend: backend}
}

func (s *Store) PutRoom(ctx context.Context, room application.Room) error {
	return s.backend.PutRoom(ctx, ToDocument(room))
}

func (s *Store) GetRoom(ctx context.Context, id string) (application.Room, error) {
	doc, err := s.backend.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return FromDocument(doc)
}

func (s *Store) UpdateRoom(ctx context.Context, id string, updates ...application.RoomUpdate) error {
	fields := make([]persistence.FieldUpdate, 0, len(updates))
	for _, u := range updates {
		switch u := u.(type) {
		case application.AddMember:
			fields = append(fields, persistence.AddUser(persistence.User{ID: u.User.ID, Name: u.User.Name}))
		case application.SetSlots:
			fields = append(fields, persistence.SetSchedule(u.UserID, u.Slots))
		default:
			return fmt.Errorf("roomstore: unsupported update %T", u)
		}
	}
	return s.backend.UpdateRoom(ctx, id, fields)
}

func (s *Store) ListRooms(ctx context.Context) ([]application.Room, error) {
	docs, err := s.backend.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(docs))
	for _, doc := range docs {
		room, err := FromDocument(doc)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// WatchRoom forwards backend snapshots. Documents that cannot be converted
// are skipped.
func (s *Store) WatchRoom(ctx context.Context, id string, fn func(application.Room)) error {
	return s.backend.WatchRoom(ctx, id, func(doc persistence.Room) {
		room, err := FromDocument(doc)
		if err != nil {
			return
		}
		fn(room)
	})
}

// ToDocument converts an application room to its stored form.
func ToDocument(room application.Room) persistence.Room {
	doc := persistence.Room{
		ID:        room.ID,
		Name:      room.Name,
		StartDate: room.StartDate.String(),
		EndDate:   room.EndDate.String(),
		CreatedBy: room.CreatedBy,
		Users:     make([]persistence.User, 0, len(room.Users)),
		Schedules: make(map[string][]string, len(room.Schedules)),
	}
	for _, u := range room.Users {
		doc.Users = append(doc.Users, persistence.User{ID: u.ID, Name: u.Name})
	}
	for id, slots := range room.Schedules {
		doc.Schedules[id] = append([]string{}, slots...)
	}
	return doc.Normalize()
}

// FromDocument converts a stored document, rejecting malformed dates.
func FromDocument(doc persistence.Room) (application.Room, error) {
	start, err := slot.ParseDate(doc.StartDate)
	if err != nil {
		return application.Room{}, fmt.Errorf("roomstore: room %s start date: %w", doc.ID, err)
	}
	end, err := slot.ParseDate(doc.EndDate)
	if err != nil {
		return application.Room{}, fmt.Errorf("roomstore: room %s end date: %w", doc.ID, err)
	}

	doc = doc.Normalize()
	room := application.Room{
		ID:        doc.ID,
		Name:      doc.Name,
		StartDate: start,
		EndDate:   end,
		CreatedBy: doc.CreatedBy,
		Users:     make([]application.User, 0, len(doc.Users)),
		Schedules: make(map[string][]string, len(doc.Schedules)),
	}
	for _, u := range doc.Users {
		room.Users = append(room.Users, application.User{ID: u.ID, Name: u.Name})
	}
	for id, slots := range doc.Schedules {
		room.Schedules[id] = append([]string{}, slots...)
	}
	return room, nil
}
