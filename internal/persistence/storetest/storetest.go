// Package storetest holds the behaviour every persistence.RoomStore backend
// must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/example/meetsync/internal/persistence"
)

// Open returns a fresh, empty store for one subtest.
type Open func(t *testing.T) persistence.RoomStore

// SampleRoom returns a freshly created room with a single creator.
func SampleRoom(id string) persistence.Room {
	return persistence.Room{
		ID:        id,
		Name:      "Team offsite",
		StartDate: "2024-01-01",
		EndDate:   "2024-01-02",
		CreatedBy: id + "-creator",
		Users:     []persistence.User{{ID: id + "-creator", Name: "Alice"}},
		Schedules: map[string][]string{id + "-creator": {}},
	}
}

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Open) {
	t.Helper()

	t.Run("put then get returns the same document", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		room := SampleRoom("r1")

		if err := store.PutRoom(ctx, room); err != nil {
			t.Fatalf("PutRoom failed: %v", err)
		}
		got, err := store.GetRoom(ctx, "r1")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if !reflect.DeepEqual(got, room) {
			t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, room)
		}
	})

	t.Run("put overwrites an existing document", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		room := SampleRoom("r1")
		mustPut(t, store, room)

		room.Name = "Renamed"
		room.Users = append(room.Users, persistence.User{ID: "u2", Name: "Bob"})
		room.Schedules["u2"] = []string{"2024-01-01:09"}
		mustPut(t, store, room)

		got, err := store.GetRoom(ctx, "r1")
		if err != nil {
			t.Fatalf("GetRoom failed: %v", err)
		}
		if !reflect.DeepEqual(got, room) {
			t.Fatalf("overwrite mismatch: %#v", got)
		}
	})

	t.Run("missing documents report ErrNotFound", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		if _, err := store.GetRoom(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from GetRoom, got %v", err)
		}
		err := store.UpdateRoom(ctx, "nope", []persistence.FieldUpdate{persistence.SetSchedule("u", nil)})
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound from UpdateRoom, got %v", err)
		}
		rooms, err := store.ListRooms(ctx)
		if err != nil || len(rooms) != 0 {
			t.Fatalf("expected no rooms after failed update, got %v (err %v)", rooms, err)
		}
	})

	t.Run("schedule update touches only its path", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		room := SampleRoom("r1")
		room.Users = append(room.Users, persistence.User{ID: "u2", Name: "Bob"})
		room.Schedules["u2"] = []string{"2024-01-02:10"}
		mustPut(t, store, room)

		slots := []string{"2024-01-01:09", "2024-01-01:10"}
		if err := store.UpdateRoom(ctx, "r1", []persistence.FieldUpdate{persistence.SetSchedule("r1-creator", slots)}); err != nil {
			t.Fatalf("UpdateRoom failed: %v", err)
		}

		got := mustGet(t, store, "r1")
		if !reflect.DeepEqual(got.Schedules["r1-creator"], slots) {
			t.Fatalf("unexpected creator schedule %v", got.Schedules["r1-creator"])
		}
		if !reflect.DeepEqual(got.Schedules["u2"], []string{"2024-01-02:10"}) {
			t.Fatalf("other schedule changed: %v", got.Schedules["u2"])
		}
		if got.Name != room.Name || len(got.Users) != 2 {
			t.Fatalf("unrelated fields changed: %#v", got)
		}
	})

	t.Run("add user appends once with an empty schedule", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		mustPut(t, store, SampleRoom("r1"))

		bob := persistence.User{ID: "u2", Name: "Bob"}
		updates := []persistence.FieldUpdate{persistence.AddUser(bob), persistence.SetSchedule(bob.ID, nil)}
		for i := 0; i < 2; i++ {
			if err := store.UpdateRoom(ctx, "r1", updates); err != nil {
				t.Fatalf("UpdateRoom failed: %v", err)
			}
		}

		got := mustGet(t, store, "r1")
		if len(got.Users) != 2 || got.Users[1] != bob {
			t.Fatalf("unexpected users %v", got.Users)
		}
		if slots, ok := got.Schedules[bob.ID]; !ok || len(slots) != 0 {
			t.Fatalf("expected empty schedule for bob, got %v (present %v)", slots, ok)
		}
	})

	t.Run("list returns every document", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		for _, id := range []string{"r1", "r2", "r3"} {
			mustPut(t, store, SampleRoom(id))
		}

		rooms, err := store.ListRooms(ctx)
		if err != nil {
			t.Fatalf("ListRooms failed: %v", err)
		}
		seen := map[string]bool{}
		for _, r := range rooms {
			seen[r.ID] = true
		}
		if len(rooms) != 3 || !seen["r1"] || !seen["r2"] || !seen["r3"] {
			t.Fatalf("unexpected rooms %v", rooms)
		}
	})

	t.Run("watch delivers the current document and later writes", func(t *testing.T) {
		store := open(t)
		mustPut(t, store, SampleRoom("r1"))

		rec := watch(t, store, "r1")
		rec.waitFor(t, func(r persistence.Room) bool { return r.Name == "Team offsite" })

		slots := []string{"2024-01-01:09"}
		if err := store.UpdateRoom(context.Background(), "r1", []persistence.FieldUpdate{persistence.SetSchedule("r1-creator", slots)}); err != nil {
			t.Fatalf("UpdateRoom failed: %v", err)
		}
		rec.waitFor(t, func(r persistence.Room) bool {
			return reflect.DeepEqual(r.Schedules["r1-creator"], slots)
		})

		rec.stop(t)
	})

	t.Run("watch of a room created later delivers it", func(t *testing.T) {
		store := open(t)
		rec := watch(t, store, "late")

		// give the watcher time to register before the write
		time.Sleep(20 * time.Millisecond)
		mustPut(t, store, SampleRoom("late"))
		rec.waitFor(t, func(r persistence.Room) bool { return r.ID == "late" })

		rec.stop(t)
	})
}

func mustPut(t *testing.T, store persistence.RoomStore, room persistence.Room) {
	t.Helper()
	if err := store.PutRoom(context.Background(), room); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}
}

func mustGet(t *testing.T, store persistence.RoomStore, id string) persistence.Room {
	t.Helper()
	room, err := store.GetRoom(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	return room
}

type recorder struct {
	mu     sync.Mutex
	rooms  []persistence.Room
	signal chan struct{}
	cancel context.CancelFunc
	done   chan error
}

func watch(t *testing.T, store persistence.RoomStore, id string) *recorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{signal: make(chan struct{}, 1), cancel: cancel, done: make(chan error, 1)}
	go func() {
		rec.done <- store.WatchRoom(ctx, id, func(room persistence.Room) {
			rec.mu.Lock()
			rec.rooms = append(rec.rooms, room)
			rec.mu.Unlock()
			select {
			case rec.signal <- struct{}{}:
			default:
			}
		})
	}()
	t.Cleanup(cancel)
	return rec
}

func (r *recorder) waitFor(t *testing.T, match func(persistence.Room) bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		r.mu.Lock()
		for _, room := range r.rooms {
			if match(room) {
				r.mu.Unlock()
				return
			}
		}
		r.mu.Unlock()
		select {
		case <-r.signal:
		case <-deadline:
			r.mu.Lock()
			count := len(r.rooms)
			r.mu.Unlock()
			t.Fatalf("timed out waiting for snapshot; got %d snapshots", count)
		}
	}
}

func (r *recorder) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		if err != nil {
			t.Fatalf("WatchRoom returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("WatchRoom did not return after cancel")
	}
}
