// Package realtime fans room snapshots out to subscribers, in process and
// across instances.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/example/meetsync/internal/persistence"
)

// Notifier receives every room snapshot written by a store.
type Notifier interface {
	Notify(ctx context.Context, room persistence.Room) error
}

type subscriber struct {
	ch chan persistence.Room
}

// Hub is an in-process per-room broadcaster. Each subscriber holds at most
// one pending snapshot; a newer snapshot replaces an undelivered older one.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers interest in roomID. The returned function unregisters
// and may be called more than once.
func (h *Hub) Subscribe(roomID string) (<-chan persistence.Room, func()) {
	sub := &subscriber{ch: make(chan persistence.Room, 1)}

	h.mu.Lock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[*subscriber]struct{})
	}
	h.subs[roomID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[roomID], sub)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
			h.mu.Unlock()
		})
	}
}

// Publish hands room to every subscriber of room.ID without blocking.
func (h *Hub) Publish(room persistence.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[room.ID] {
		snapshot := room.Clone()
		select {
		case sub.ch <- snapshot:
			continue
		default:
		}
		// drop the stale pending snapshot
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snapshot:
		default:
		}
	}
}

// Notify implements Notifier.
func (h *Hub) Notify(_ context.Context, room persistence.Room) error {
	h.Publish(room)
	return nil
}

// Subscribers reports how many subscribers roomID currently has.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[roomID])
}

// Watch implements persistence.RoomStore.WatchRoom for stores that publish
// through the hub. load reads the current document.
func (h *Hub) Watch(ctx context.Context, roomID string, load func(context.Context) (persistence.Room, error), fn func(persistence.Room)) error {
	ch, unsubscribe := h.Subscribe(roomID)
	defer unsubscribe()

	current, err := load(ctx)
	switch {
	case err == nil:
		fn(current)
	case ctx.Err() != nil:
		return nil
	case !errors.Is(err, persistence.ErrNotFound):
		return err
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
