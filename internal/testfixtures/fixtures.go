package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/persistence"
)

var roomCounter uint64

var referenceTime = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// MemberFixture is one room participant with their selected slots.
type MemberFixture struct {
	ID    string
	Name  string
	Slots []string
}

// RoomFixture represents a deterministic room document.
type RoomFixture struct {
	ID        string
	Name      string
	StartDate civil.Date
	EndDate   civil.Date
	Members   []MemberFixture
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a two-day room, 2024-01-01 to 2024-01-02, whose
// creator "Alice" has no slots selected.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room%04d", idx%10000),
		Name:      fmt.Sprintf("Room %03d", idx),
		StartDate: civil.Date{Year: 2024, Month: time.January, Day: 1},
		EndDate:   civil.Date{Year: 2024, Month: time.January, Day: 2},
		Members:   []MemberFixture{{ID: fmt.Sprintf("user%04d", idx%10000), Name: "Alice"}},
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomDates sets the inclusive date range.
func WithRoomDates(start, end civil.Date) RoomOption {
	return func(f *RoomFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithCreator replaces the first member, who is the room creator.
func WithCreator(id, name string) RoomOption {
	return func(f *RoomFixture) {
		f.Members[0] = MemberFixture{ID: id, Name: name, Slots: f.Members[0].Slots}
	}
}

// WithMember appends a member with the given slots.
func WithMember(id, name string, slots ...string) RoomOption {
	return func(f *RoomFixture) {
		f.Members = append(f.Members, MemberFixture{ID: id, Name: name, Slots: append([]string{}, slots...)})
	}
}

// WithSlots sets the selected slots of an existing member.
func WithSlots(memberID string, slots ...string) RoomOption {
	return func(f *RoomFixture) {
		for i := range f.Members {
			if f.Members[i].ID == memberID {
				f.Members[i].Slots = append([]string{}, slots...)
			}
		}
	}
}

// CreatorID returns the id of the first member.
func (f RoomFixture) CreatorID() string {
	return f.Members[0].ID
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	room := application.Room{
		ID:        f.ID,
		Name:      f.Name,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		CreatedBy: f.CreatorID(),
		Users:     make([]application.User, 0, len(f.Members)),
		Schedules: make(map[string][]string, len(f.Members)),
	}
	for _, m := range f.Members {
		room.Users = append(room.Users, application.User{ID: m.ID, Name: m.Name})
		room.Schedules[m.ID] = append([]string{}, m.Slots...)
	}
	return room
}

// Persistence returns the fixture as a persistence.Room document.
func (f RoomFixture) Persistence() persistence.Room {
	room := persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		StartDate: f.StartDate.String(),
		EndDate:   f.EndDate.String(),
		CreatedBy: f.CreatorID(),
		Users:     make([]persistence.User, 0, len(f.Members)),
		Schedules: make(map[string][]string, len(f.Members)),
	}
	for _, m := range f.Members {
		room.Users = append(room.Users, persistence.User{ID: m.ID, Name: m.Name})
		room.Schedules[m.ID] = append([]string{}, m.Slots...)
	}
	return room
}
