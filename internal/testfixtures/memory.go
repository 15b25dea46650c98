package testfixtures

import (
	"context"
	"testing"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/persistence/memory"
	"github.com/example/meetsync/internal/roomstore"
)

// MemoryHarness wires an in-memory document store to a room service with
// deterministic ids and clock.
type MemoryHarness struct {
	Documents *memory.Store
	Rooms     *roomstore.Store
	Service   *application.RoomService
	Factory   *ServiceFactory
}

// NewMemoryHarness seeds the store with rooms and builds the service.
func NewMemoryHarness(tb testing.TB, rooms ...RoomFixture) *MemoryHarness {
	tb.Helper()

	documents := memory.New(nil, nil)
	for _, room := range rooms {
		if err := documents.PutRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("failed to seed room %s: %v", room.ID, err)
		}
	}

	adapter := roomstore.New(documents)
	factory := NewServiceFactory(WithClock(NewClock(ReferenceTime())))
	return &MemoryHarness{
		Documents: documents,
		Rooms:     adapter,
		Service:   factory.NewRoomService(RoomServiceDeps{Rooms: adapter}),
		Factory:   factory,
	}
}
