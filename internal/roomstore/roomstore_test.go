package roomstore_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/persistence/memory"
	"github.com/example/meetsync/internal/roomstore"
	"github.com/example/meetsync/internal/testfixtures"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := roomstore.New(memory.New(nil, nil))
	fixture := testfixtures.NewRoomFixture(
		testfixtures.WithRoomID("room0001"),
		testfixtures.WithCreator("u1", "Alice"),
		testfixtures.WithSlots("u1", "2024-01-01:09"),
	)

	if err := store.PutRoom(ctx, fixture.Application()); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}
	got, err := store.GetRoom(ctx, "room0001")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if !reflect.DeepEqual(got, fixture.Application()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, fixture.Application())
	}

	if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected persistence.ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateRoomTranslatesUpdates(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(nil, nil)
	store := roomstore.New(backend)
	fixture := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room0002"), testfixtures.WithCreator("u1", "Alice"))
	if err := store.PutRoom(ctx, fixture.Application()); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}

	bob := application.User{ID: "u2", Name: "Bob"}
	err := store.UpdateRoom(ctx, "room0002",
		application.AddMember{User: bob},
		application.SetSlots{UserID: "u2", Slots: nil},
		application.SetSlots{UserID: "u1", Slots: []string{"2024-01-02:10"}},
	)
	if err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}

	doc, err := backend.GetRoom(ctx, "room0002")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if len(doc.Users) != 2 || doc.Users[1] != (persistence.User{ID: "u2", Name: "Bob"}) {
		t.Fatalf("users = %+v", doc.Users)
	}
	if got := doc.Schedules["u2"]; got == nil || len(got) != 0 {
		t.Fatalf("expected empty slot list for new member, got %#v", got)
	}
	if !reflect.DeepEqual(doc.Schedules["u1"], []string{"2024-01-02:10"}) {
		t.Fatalf("u1 slots = %v", doc.Schedules["u1"])
	}
}

func TestFromDocument_RejectsMalformedDates(t *testing.T) {
	doc := testfixtures.NewRoomFixture().Persistence()
	doc.StartDate = "01/02/2024"
	if _, err := roomstore.FromDocument(doc); err == nil {
		t.Fatal("expected error for malformed start date")
	}
}

func TestStore_WatchRoomConvertsSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := roomstore.New(memory.New(nil, nil))
	fixture := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room0003"))
	if err := store.PutRoom(ctx, fixture.Application()); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}

	got := make(chan application.Room, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.WatchRoom(ctx, "room0003", func(room application.Room) { got <- room })
	}()

	select {
	case room := <-got:
		if room.StartDate != fixture.StartDate {
			t.Fatalf("start date = %v", room.StartDate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WatchRoom returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WatchRoom did not return after cancel")
	}
}
