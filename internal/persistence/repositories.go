package persistence

import (
	"context"
	"fmt"
	"strings"
)

// Collection is the document collection holding rooms in every backend.
const Collection = "rooms"

// RoomStore is a document store addressed by room id.
type RoomStore interface {
	// PutRoom creates or overwrites the document at rooms/{id}.
	PutRoom(ctx context.Context, room Room) error
	// GetRoom reads one document. It returns ErrNotFound when absent.
	GetRoom(ctx context.Context, id string) (Room, error)
	// UpdateRoom applies field updates to one document atomically. It returns
	// ErrNotFound when the document does not exist.
	UpdateRoom(ctx context.Context, id string, updates []FieldUpdate) error
	// ListRooms returns every document in the collection.
	ListRooms(ctx context.Context) ([]Room, error)
	// WatchRoom calls fn with the current document and again after every
	// change until ctx is done. Missing documents are not delivered. It
	// returns nil when ctx ends the watch.
	WatchRoom(ctx context.Context, id string, fn func(Room)) error
}

// UpdateOp is the kind of change a FieldUpdate performs.
type UpdateOp int

const (
	// OpSet replaces the value at the path.
	OpSet UpdateOp = iota
	// OpArrayUnion appends the value to the array at the path unless an equal
	// element is already present.
	OpArrayUnion
)

// FieldUpdate changes one field of a room document addressed by dotted path,
// e.g. "name" or "schedules.{userId}".
type FieldUpdate struct {
	Path  string
	Op    UpdateOp
	Value any
}

// SetSchedule replaces one user's slot list.
func SetSchedule(userID string, slots []string) FieldUpdate {
	if slots == nil {
		slots = []string{}
	}
	return FieldUpdate{Path: "schedules." + userID, Op: OpSet, Value: slots}
}

// AddUser appends a user to the users array unless already present.
func AddUser(user User) FieldUpdate {
	return FieldUpdate{Path: "users", Op: OpArrayUnion, Value: user}
}

// SetName replaces the room name.
func SetName(name string) FieldUpdate {
	return FieldUpdate{Path: "name", Op: OpSet, Value: name}
}

// Segments splits the dotted path. Only "schedules" has a nested key, and
// that key may itself contain dots.
func (u FieldUpdate) Segments() []string {
	if rest, ok := strings.CutPrefix(u.Path, "schedules."); ok {
		return []string{"schedules", rest}
	}
	return []string{u.Path}
}

// ApplyUpdates interprets updates against room in memory. Backends without
// native partial updates use it inside their own atomic section.
func ApplyUpdates(room *Room, updates []FieldUpdate) error {
	for _, u := range updates {
		if err := applyUpdate(room, u); err != nil {
			return err
		}
	}
	return nil
}

// ValidateUpdates reports the first update ApplyUpdates would reject.
// Backends with native partial updates call it before translating paths.
func ValidateUpdates(updates []FieldUpdate) error {
	var scratch Room
	return ApplyUpdates(&scratch, updates)
}

func applyUpdate(room *Room, u FieldUpdate) error {
	segments := u.Segments()
	if u.Op == OpArrayUnion {
		if u.Path != "users" {
			return fmt.Errorf("%w: array union on %q", ErrInvalidUpdate, u.Path)
		}
		user, ok := u.Value.(User)
		if !ok {
			return fmt.Errorf("%w: users expects User, got %T", ErrInvalidUpdate, u.Value)
		}
		for _, existing := range room.Users {
			if existing == user {
				return nil
			}
		}
		room.Users = append(room.Users, user)
		return nil
	}
	if u.Op != OpSet {
		return fmt.Errorf("%w: unknown op %d", ErrInvalidUpdate, u.Op)
	}

	if len(segments) == 2 {
		slots, ok := u.Value.([]string)
		if !ok || segments[1] == "" {
			return fmt.Errorf("%w: %q expects []string, got %T", ErrInvalidUpdate, u.Path, u.Value)
		}
		if room.Schedules == nil {
			room.Schedules = make(map[string][]string)
		}
		room.Schedules[segments[1]] = append([]string{}, slots...)
		return nil
	}

	switch u.Path {
	case "users":
		users, ok := u.Value.([]User)
		if !ok {
			return fmt.Errorf("%w: users expects []User, got %T", ErrInvalidUpdate, u.Value)
		}
		room.Users = append([]User{}, users...)
		return nil
	case "name", "startDate", "endDate", "createdBy":
		value, ok := u.Value.(string)
		if !ok {
			return fmt.Errorf("%w: %q expects string, got %T", ErrInvalidUpdate, u.Path, u.Value)
		}
		switch u.Path {
		case "name":
			room.Name = value
		case "startDate":
			room.StartDate = value
		case "endDate":
			room.EndDate = value
		case "createdBy":
			room.CreatedBy = value
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown path %q", ErrInvalidUpdate, u.Path)
	}
}
