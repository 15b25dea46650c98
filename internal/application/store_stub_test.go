package application

import (
	"context"
	"sync"
)

// roomStoreStub is an in-memory RoomStore that records writes and fans
// committed rooms out to watchers.
type roomStoreStub struct {
	mu       sync.Mutex
	rooms    map[string]Room
	watchers map[string][]chan Room

	putErr    error
	getErr    error
	updateErr error
	listErr   error
	watchErr  error

	puts    []Room
	updates [][]RoomUpdate
}

func newRoomStoreStub(rooms ...Room) *roomStoreStub {
	s := &roomStoreStub{rooms: make(map[string]Room), watchers: make(map[string][]chan Room)}
	for _, r := range rooms {
		s.rooms[r.ID] = r.Clone()
	}
	return s
}

func (s *roomStoreStub) PutRoom(ctx context.Context, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, room.Clone())
	s.rooms[room.ID] = room.Clone()
	s.broadcastLocked(room)
	return nil
}

func (s *roomStoreStub) GetRoom(ctx context.Context, id string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return Room{}, s.getErr
	}
	room, ok := s.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room.Clone(), nil
}

func (s *roomStoreStub) UpdateRoom(ctx context.Context, id string, updates ...RoomUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	room, ok := s.rooms[id]
	if !ok {
		return ErrNotFound
	}
	s.updates = append(s.updates, updates)
	room = room.Clone()
	for _, u := range updates {
		switch u := u.(type) {
		case AddMember:
			if _, exists := room.Member(u.User.ID); !exists {
				room.Users = append(room.Users, u.User)
			}
		case SetSlots:
			room.Schedules[u.UserID] = append([]string{}, u.Slots...)
		}
	}
	s.rooms[id] = room
	s.broadcastLocked(room)
	return nil
}

func (s *roomStoreStub) ListRooms(ctx context.Context) ([]Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *roomStoreStub) WatchRoom(ctx context.Context, id string, fn func(Room)) error {
	ch := make(chan Room, 64)
	s.mu.Lock()
	if s.watchErr != nil {
		err := s.watchErr
		s.mu.Unlock()
		return err
	}
	s.watchers[id] = append(s.watchers[id], ch)
	current, ok := s.rooms[id]
	s.mu.Unlock()

	defer s.removeWatcher(id, ch)
	if ok {
		fn(current.Clone())
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case room := <-ch:
			fn(room)
		}
	}
}

func (s *roomStoreStub) watcherCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[id])
}

func (s *roomStoreStub) removeWatcher(id string, ch chan Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.watchers[id]
	for i, c := range list {
		if c == ch {
			s.watchers[id] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (s *roomStoreStub) broadcastLocked(room Room) {
	for _, ch := range s.watchers[room.ID] {
		ch <- room.Clone()
	}
}
