package application

import (
	"context"
	"slices"
	"sync"
)

// ScheduleWriter persists a user's full slot list.
type ScheduleWriter interface {
	UpdateSchedule(ctx context.Context, roomID, userID string, slots []string) (Room, error)
}

// ScheduleEditor holds one viewer's working copy of a room. Toggles are
// applied locally first and marked pending until the write returns. A failed
// write reverts the user's slots to their value before the toggle.
type ScheduleEditor struct {
	writer ScheduleWriter
	userID string

	mu      sync.Mutex
	room    Room
	pending int
}

// NewScheduleEditor starts editing room on behalf of userID.
func NewScheduleEditor(writer ScheduleWriter, room Room, userID string) *ScheduleEditor {
	return &ScheduleEditor{writer: writer, userID: userID, room: room.Clone()}
}

// Room returns a copy of the working copy and whether writes are in flight.
func (e *ScheduleEditor) Room() (Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.Clone(), e.pending > 0
}

// Apply replaces the working copy with a snapshot from the store.
func (e *ScheduleEditor) Apply(room Room) (Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.room = room.Clone()
	return e.room.Clone(), e.pending > 0
}

// Toggle flips slotID for the editing user. onLocal receives the optimistic
// copy before the write starts. On success the user's confirmed slots are
// kept; on failure they are reverted and the write error is returned.
func (e *ScheduleEditor) Toggle(ctx context.Context, slotID string, onLocal func(Room)) (Room, error) {
	e.mu.Lock()
	previous := append([]string{}, e.room.Schedules[e.userID]...)
	next := toggled(previous, slotID)
	if e.room.Schedules == nil {
		e.room.Schedules = make(map[string][]string)
	}
	e.room.Schedules[e.userID] = next
	e.pending++
	local := e.room.Clone()
	roomID := e.room.ID
	e.mu.Unlock()

	if onLocal != nil {
		onLocal(local)
	}

	written, err := e.writer.UpdateSchedule(ctx, roomID, e.userID, next)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending--
	if err != nil {
		// a snapshot that arrived meanwhile is newer than our edit
		if slices.Equal(e.room.Schedules[e.userID], next) {
			e.room.Schedules[e.userID] = previous
		}
		return e.room.Clone(), err
	}
	if slots, ok := written.Schedules[e.userID]; ok {
		e.room.Schedules[e.userID] = append([]string{}, slots...)
	}
	return e.room.Clone(), nil
}
