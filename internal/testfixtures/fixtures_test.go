package testfixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/example/meetsync/internal/application"
)

func TestRoomFixtureConversions(t *testing.T) {
	f := NewRoomFixture(
		WithRoomID("room1234"),
		WithCreator("usera001", "Alice"),
		WithMember("userb002", "Bob", "2024-01-01:09"),
		WithSlots("usera001", "2024-01-01:10"),
	)

	app := f.Application()
	if app.CreatedBy != "usera001" || len(app.Users) != 2 {
		t.Fatalf("unexpected application room: %+v", app)
	}
	if got := app.Schedules["userb002"]; len(got) != 1 || got[0] != "2024-01-01:09" {
		t.Fatalf("Bob's slots = %v", got)
	}

	doc := f.Persistence()
	if doc.StartDate != "2024-01-01" || doc.EndDate != "2024-01-02" {
		t.Fatalf("unexpected persisted dates: %s..%s", doc.StartDate, doc.EndDate)
	}
	if got := doc.Schedules["usera001"]; len(got) != 1 || got[0] != "2024-01-01:10" {
		t.Fatalf("Alice's slots = %v", got)
	}
}

type failingStore struct {
	application.RoomStore
}

func (failingStore) GetRoom(context.Context, string) (application.Room, error) {
	return application.Room{}, application.ErrNotFound
}

func TestServiceFactoryUsesDeterministicIDs(t *testing.T) {
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("x")))
	svc := factory.NewRoomService(RoomServiceDeps{Rooms: failingStore{}})

	_, _, err := svc.JoinRoom(context.Background(), "missing1", "Alice")
	if !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := factory.IDGenerator.Next(); got != "x0000001" {
		t.Fatalf("a failed join must not consume ids, next id = %q", got)
	}
}

func TestSQLiteHarness(t *testing.T) {
	h := NewSQLiteHarness(t)
	room := NewRoomFixture().Persistence()
	if err := h.Store.PutRoom(context.Background(), room); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}
	if _, err := h.Store.GetRoom(context.Background(), room.ID); err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
}
