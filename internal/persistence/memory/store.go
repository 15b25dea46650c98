// Package memory is a process-local room store used by tests and single
// instance development setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/realtime"
)

// Store keeps room documents in a map.
type Store struct {
	mu       sync.RWMutex
	notifyMu sync.Mutex
	rooms    map[string]persistence.Room

	hub      *realtime.Hub
	notifier realtime.Notifier
}

var _ persistence.RoomStore = (*Store)(nil)

// New returns an empty store publishing changes to hub. When notifier is nil
// changes go to hub directly.
func New(hub *realtime.Hub, notifier realtime.Notifier) *Store {
	if hub == nil {
		hub = realtime.NewHub()
	}
	if notifier == nil {
		notifier = hub
	}
	return &Store{rooms: make(map[string]persistence.Room), hub: hub, notifier: notifier}
}

// PutRoom creates or overwrites a room.
func (s *Store) PutRoom(ctx context.Context, room persistence.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	room = room.Clone().Normalize()

	s.mu.Lock()
	s.rooms[room.ID] = room
	s.publishLocked(ctx, room.Clone())
	return nil
}

// GetRoom returns a copy of the stored room.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Room{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room.Clone(), nil
}

// UpdateRoom applies updates to a copy and swaps it in only when all succeed.
func (s *Store) UpdateRoom(ctx context.Context, id string, updates []persistence.FieldUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return persistence.ErrNotFound
	}
	updated := room.Clone()
	if err := persistence.ApplyUpdates(&updated, updates); err != nil {
		s.mu.Unlock()
		return err
	}
	updated = updated.Normalize()
	s.rooms[id] = updated
	s.publishLocked(ctx, updated.Clone())
	return nil
}

// ListRooms returns all rooms ordered by id.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// WatchRoom streams snapshots of one room until ctx is done.
func (s *Store) WatchRoom(ctx context.Context, id string, fn func(persistence.Room)) error {
	return s.hub.Watch(ctx, id, func(ctx context.Context) (persistence.Room, error) {
		return s.GetRoom(ctx, id)
	}, fn)
}

// publishLocked releases s.mu and notifies in write order.
func (s *Store) publishLocked(ctx context.Context, room persistence.Room) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	// delivery failures do not undo the write
	_ = s.notifier.Notify(context.WithoutCancel(ctx), room)
}
