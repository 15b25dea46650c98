package application

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/meetsync/internal/availability"
)

// User is a room participant. Within a room a user is identified by the
// normalized form of their name.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is a scheduling session over an inclusive date range.
type Room struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	StartDate civil.Date          `json:"startDate"`
	EndDate   civil.Date          `json:"endDate"`
	CreatedBy string              `json:"createdBy"`
	Users     []User              `json:"users"`
	Schedules map[string][]string `json:"schedules"`
}

// Clone returns a deep copy.
func (r Room) Clone() Room {
	out := r
	out.Users = append([]User{}, r.Users...)
	out.Schedules = make(map[string][]string, len(r.Schedules))
	for id, slots := range r.Schedules {
		out.Schedules[id] = append([]string{}, slots...)
	}
	return out
}

// Member returns the user with the given id.
func (r Room) Member(userID string) (User, bool) {
	for _, u := range r.Users {
		if u.ID == userID {
			return u, true
		}
	}
	return User{}, false
}

// MemberByName returns the first user whose normalized name matches.
func (r Room) MemberByName(name string) (User, bool) {
	key := NormalizeName(name)
	if key == "" {
		return User{}, false
	}
	for _, u := range r.Users {
		if NormalizeName(u.Name) == key {
			return u, true
		}
	}
	return User{}, false
}

func (r Room) members() []availability.Member {
	out := make([]availability.Member, len(r.Users))
	for i, u := range r.Users {
		out[i] = availability.Member{ID: u.ID, Name: u.Name}
	}
	return out
}

// NormalizeName returns the identity key for a display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateRoomInput carries the raw form values for a new room. Dates use the
// YYYY-MM-DD form.
type CreateRoomInput struct {
	Name        string `json:"name"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	CreatorName string `json:"creatorName"`
}

// Availability is the aggregated view of a room for one viewer.
type Availability struct {
	Room         Room                       `json:"room"`
	Grid         availability.Grid          `json:"grid"`
	Participants []availability.Participant `json:"participants"`
}

// BuildAvailability aggregates room for viewerID without touching the store.
func BuildAvailability(room Room, viewerID string) Availability {
	members := room.members()
	return Availability{
		Room:         room,
		Grid:         availability.BuildGrid(room.StartDate, room.EndDate, members, room.Schedules, viewerID),
		Participants: availability.Summarize(members, room.Schedules, viewerID, room.CreatedBy),
	}
}

// RoomUpdate is one partial change to a stored room.
type RoomUpdate interface {
	isRoomUpdate()
}

// AddMember appends User to the room unless an identical entry exists.
type AddMember struct {
	User User
}

// SetSlots replaces one user's slot list.
type SetSlots struct {
	UserID string
	Slots  []string
}

func (AddMember) isRoomUpdate() {}
func (SetSlots) isRoomUpdate()  {}

// RoomStore is the document store the service reads and writes.
type RoomStore interface {
	PutRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	UpdateRoom(ctx context.Context, id string, updates ...RoomUpdate) error
	ListRooms(ctx context.Context) ([]Room, error)
	WatchRoom(ctx context.Context, id string, fn func(Room)) error
}

// Room activity event types.
const (
	EventRoomCreated     = "room.created"
	EventMemberJoined    = "room.member_joined"
	EventScheduleUpdated = "room.schedule_updated"
)

// RoomEvent describes a completed mutation.
type RoomEvent struct {
	Type       string
	RoomID     string
	UserID     string
	SlotCount  int
	OccurredAt time.Time
}

// EventPublisher receives room activity after successful writes.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event RoomEvent) error
}

// OperationRecorder counts service operations by outcome. errorKind is empty
// on success.
type OperationRecorder interface {
	RecordOperation(operation, errorKind string)
}
