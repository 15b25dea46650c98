package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/meetsync/internal/ids"
	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/slot"
)

// RoomService owns the room lifecycle: creation, joining by name, schedule
// replacement, lookups and change subscriptions. All input validation
// happens here.
type RoomService struct {
	rooms       RoomStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	events      EventPublisher
	recorder    OperationRecorder
}

// RoomServiceOption configures optional collaborators.
type RoomServiceOption func(*RoomService)

// WithEventPublisher publishes room activity after successful writes.
func WithEventPublisher(p EventPublisher) RoomServiceOption {
	return func(s *RoomService) { s.events = p }
}

// WithOperationRecorder reports every operation outcome to r.
func WithOperationRecorder(r OperationRecorder) RoomServiceOption {
	return func(s *RoomService) { s.recorder = r }
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomStore, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomStore, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...RoomServiceOption) *RoomService {
	if idGenerator == nil {
		idGenerator = ids.New
	}
	if now == nil {
		now = time.Now
	}
	s := &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

func (s *RoomService) record(operation string, err error) {
	if s.recorder != nil {
		s.recorder.RecordOperation(operation, ErrorKind(err))
	}
}

func (s *RoomService) publish(ctx context.Context, logger *slog.Logger, event RoomEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now()
	if err := s.events.PublishRoomEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish room event", "event_type", event.Type, "error", err)
	}
}

// CreateRoom writes a new room whose only member is the creator.
func (s *RoomService) CreateRoom(ctx context.Context, input CreateRoomInput) (room Room, creator User, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom")
	defer func() {
		s.record("CreateRoom", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID, "user_id", creator.ID).InfoContext(ctx, "room created")
	}()

	start, end, vErr := validateCreateRoomInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	roomID := s.idGenerator()
	creator = User{ID: s.idGenerator(), Name: strings.TrimSpace(input.CreatorName)}
	candidate := Room{
		ID:        roomID,
		Name:      strings.TrimSpace(input.Name),
		StartDate: start,
		EndDate:   end,
		CreatedBy: creator.ID,
		Users:     []User{creator},
		Schedules: map[string][]string{creator.ID: {}},
	}

	if err = s.rooms.PutRoom(ctx, candidate); err != nil {
		err = mapRoomStoreError("create room", err)
		creator = User{}
		return
	}

	room = candidate
	s.publish(ctx, logger, RoomEvent{Type: EventRoomCreated, RoomID: room.ID, UserID: creator.ID})
	return
}

// JoinRoom adds userName to the room, or returns the existing member with the
// same normalized name. Two concurrent joins with the same new name can both
// append a user.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userName string) (room Room, user User, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	roomID = strings.TrimSpace(roomID)
	name := strings.TrimSpace(userName)
	logger := s.loggerWith(ctx, "JoinRoom", "room_id", roomID)
	rejoined := false
	defer func() {
		s.record("JoinRoom", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to join room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "rejoined", rejoined).InfoContext(ctx, "room joined")
	}()

	vErr := &ValidationError{}
	if roomID == "" {
		vErr.add("roomId", "room id is required")
	}
	if name == "" {
		vErr.add("name", "user name is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var current Room
	current, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomStoreError("get room", err)
		return
	}

	if existing, ok := current.MemberByName(name); ok {
		rejoined = true
		if _, hasSchedule := current.Schedules[existing.ID]; !hasSchedule {
			logger.WarnContext(ctx, "repairing missing schedule entry", "user_id", existing.ID)
			if err = s.rooms.UpdateRoom(ctx, roomID, SetSlots{UserID: existing.ID, Slots: []string{}}); err != nil {
				err = mapRoomStoreError("repair schedule", err)
				return
			}
			current = current.Clone()
			if current.Schedules == nil {
				current.Schedules = make(map[string][]string)
			}
			current.Schedules[existing.ID] = []string{}
		}
		room, user = current, existing
		return
	}

	joined := User{ID: s.idGenerator(), Name: name}
	err = s.rooms.UpdateRoom(ctx, roomID, AddMember{User: joined}, SetSlots{UserID: joined.ID, Slots: []string{}})
	if err != nil {
		err = mapRoomStoreError("add member", err)
		return
	}

	room = current.Clone()
	room.Users = append(room.Users, joined)
	room.Schedules[joined.ID] = []string{}
	user = joined
	s.publish(ctx, logger, RoomEvent{Type: EventMemberJoined, RoomID: room.ID, UserID: user.ID})
	return
}

// UpdateSchedule replaces the user's slot list. Slots must be well formed and
// inside the room's dates; repeats are dropped keeping the first occurrence.
func (s *RoomService) UpdateSchedule(ctx context.Context, roomID, userID string, slots []string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSchedule", "room_id", roomID, "user_id", userID)
	defer func() {
		s.record("UpdateSchedule", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("slot_count", len(room.Schedules[userID])).InfoContext(ctx, "schedule updated")
	}()

	var current Room
	current, err = s.loadForSchedule(ctx, roomID, userID)
	if err != nil {
		return
	}
	room, err = s.writeSchedule(ctx, logger, current, userID, slots)
	return
}

// ToggleSlot removes slotID from the user's schedule when present and adds it
// otherwise.
func (s *RoomService) ToggleSlot(ctx context.Context, roomID, userID, slotID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ToggleSlot", "room_id", roomID, "user_id", userID, "slot_id", slotID)
	defer func() {
		s.record("ToggleSlot", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to toggle slot", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "slot toggled")
	}()

	var current Room
	current, err = s.loadForSchedule(ctx, roomID, userID)
	if err != nil {
		return
	}
	room, err = s.writeSchedule(ctx, logger, current, userID, toggled(current.Schedules[userID], slotID))
	return
}

func (s *RoomService) loadForSchedule(ctx context.Context, roomID, userID string) (Room, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(roomID) == "" {
		vErr.add("roomId", "room id is required")
	}
	if strings.TrimSpace(userID) == "" {
		vErr.add("userId", "user id is required")
	}
	if vErr.HasErrors() {
		return Room{}, vErr
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomStoreError("get room", err)
	}
	if _, ok := room.Member(userID); !ok {
		vErr.add("userId", "user is not a member of the room")
		return Room{}, vErr
	}
	return room, nil
}

func (s *RoomService) writeSchedule(ctx context.Context, logger *slog.Logger, room Room, userID string, slots []string) (Room, error) {
	cleaned, vErr := normalizeSlots(slots, room.StartDate, room.EndDate)
	if vErr.HasErrors() {
		return Room{}, vErr
	}
	if err := s.rooms.UpdateRoom(ctx, room.ID, SetSlots{UserID: userID, Slots: cleaned}); err != nil {
		return Room{}, mapRoomStoreError("set schedule", err)
	}

	updated := room.Clone()
	updated.Schedules[userID] = cleaned
	s.publish(ctx, logger, RoomEvent{Type: EventScheduleUpdated, RoomID: room.ID, UserID: userID, SlotCount: len(cleaned)})
	return updated, nil
}

// GetRoom reads one room.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	defer func() { s.record("GetRoom", err) }()

	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		vErr := &ValidationError{}
		vErr.add("roomId", "room id is required")
		err = vErr
		return
	}

	room, err = s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		err = mapRoomStoreError("get room", err)
		if !errors.Is(err, ErrNotFound) {
			s.loggerWith(ctx, "GetRoom", "room_id", roomID).ErrorContext(ctx, "failed to get room", "error", err, "error_kind", ErrorKind(err))
		}
	}
	return
}

// GetRoomsForUser returns every room with a member named userName, ordered by
// room name and then id. It scans the whole collection.
func (s *RoomService) GetRoomsForUser(ctx context.Context, userName string) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetRoomsForUser")
	defer func() {
		s.record("GetRoomsForUser", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms for user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	key := NormalizeName(userName)
	if key == "" {
		vErr := &ValidationError{}
		vErr.add("name", "user name is required")
		err = vErr
		return
	}

	var all []Room
	all, err = s.rooms.ListRooms(ctx)
	if err != nil {
		err = mapRoomStoreError("list rooms", err)
		return
	}

	rooms = make([]Room, 0)
	for _, r := range all {
		if _, ok := r.MemberByName(key); ok {
			rooms = append(rooms, r)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		if strings.EqualFold(rooms[i].Name, rooms[j].Name) {
			return rooms[i].ID < rooms[j].ID
		}
		return strings.ToLower(rooms[i].Name) < strings.ToLower(rooms[j].Name)
	})
	return
}

// GetAvailability reads the room and aggregates it for viewerID.
func (s *RoomService) GetAvailability(ctx context.Context, roomID, viewerID string) (Availability, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return Availability{}, err
	}
	return BuildAvailability(room, viewerID), nil
}

// SubscribeToRoom calls onUpdate with the current room and again after every
// stored change until the subscription is cancelled or ctx is done.
// Snapshots may repeat; consumers replace their copy on each call.
func (s *RoomService) SubscribeToRoom(ctx context.Context, roomID string, onUpdate func(Room)) (sub *Subscription, err error) {
	if s == nil {
		return nil, fmt.Errorf("RoomService is nil")
	}

	logger := s.loggerWith(ctx, "SubscribeToRoom", "room_id", roomID)
	defer func() {
		s.record("SubscribeToRoom", err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to subscribe", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		vErr := &ValidationError{}
		vErr.add("roomId", "room id is required")
		return nil, vErr
	}
	if _, err = s.rooms.GetRoom(ctx, roomID); err != nil {
		err = mapRoomStoreError("get room", err)
		return nil, err
	}

	sub = newSubscription(ctx)
	go func() {
		watchErr := s.rooms.WatchRoom(sub.ctx, roomID, func(room Room) {
			sub.deliver(room, onUpdate)
		})
		if watchErr != nil && !sub.stopped.Load() {
			watchErr = mapRoomStoreError("watch room", watchErr)
			logger.ErrorContext(ctx, "subscription ended", "error", watchErr, "error_kind", ErrorKind(watchErr))
		} else {
			watchErr = nil
			logger.DebugContext(ctx, "subscription closed")
		}
		sub.finish(watchErr)
	}()
	logger.DebugContext(ctx, "subscription started")
	return sub, nil
}

func validateCreateRoomInput(input CreateRoomInput) (civil.Date, civil.Date, *ValidationError) {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(input.CreatorName) == "" {
		vErr.add("creatorName", "creator name is required")
	}

	start, startOK := parseDateField(vErr, "startDate", input.StartDate)
	end, endOK := parseDateField(vErr, "endDate", input.EndDate)
	if startOK && endOK && start.After(end) {
		vErr.add("endDate", "end date must not be before start date")
	}
	return start, end, vErr
}

func parseDateField(vErr *ValidationError, field, value string) (civil.Date, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		vErr.add(field, "date is required")
		return civil.Date{}, false
	}
	d, err := slot.ParseDate(value)
	if err != nil {
		vErr.add(field, "date is invalid")
		return civil.Date{}, false
	}
	return d, true
}

func normalizeSlots(slots []string, start, end civil.Date) ([]string, *ValidationError) {
	vErr := &ValidationError{}
	cleaned := make([]string, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for _, id := range slots {
		if _, _, err := slot.Parse(id); err != nil {
			vErr.add("slots", "slot id is invalid")
			continue
		}
		if !slot.InRange(id, start, end) {
			vErr.add("slots", "slot is outside the room dates")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return cleaned, vErr
}

// toggled returns a copy of slots with slotID removed, or appended when absent.
func toggled(slots []string, slotID string) []string {
	out := make([]string, 0, len(slots)+1)
	removed := false
	for _, id := range slots {
		if id == slotID {
			removed = true
			continue
		}
		out = append(out, id)
	}
	if !removed {
		out = append(out, slotID)
	}
	return out
}

func mapRoomStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return &BackendError{Op: op, Err: err}
}
