package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meetsync/internal/application"
)

const maxRequestBody = 1 << 20

type roomService interface {
	CreateRoom(ctx context.Context, input application.CreateRoomInput) (application.Room, application.User, error)
	JoinRoom(ctx context.Context, roomID, userName string) (application.Room, application.User, error)
	UpdateSchedule(ctx context.Context, roomID, userID string, slots []string) (application.Room, error)
	ToggleSlot(ctx context.Context, roomID, userID, slotID string) (application.Room, error)
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	GetRoomsForUser(ctx context.Context, userName string) ([]application.Room, error)
	GetAvailability(ctx context.Context, roomID, viewerID string) (application.Availability, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// decode reads a JSON body, answering 400 itself when it is malformed.
func (h *RoomHandler) decode(w http.ResponseWriter, r *http.Request, operation string, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode request body", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req createRoomRequest
	if !h.decode(w, r, "Create", &req) {
		return
	}

	logger := h.log(r.Context(), "Create")
	room, creator, err := h.service.CreateRoom(r.Context(), req.toInput())
	if err != nil {
		logger.WarnContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{backend: msgCreateRoomFailed})
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, memberResponse{Room: room, User: creator})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "List")
	rooms, err := h.service.GetRoomsForUser(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		logger.WarnContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}

	if rooms == nil {
		rooms = []application.Room{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: rooms})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID := r.PathValue("id")
	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.log(r.Context(), "Get", "room_id", roomID).WarnContext(r.Context(), "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: room})
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID := r.PathValue("id")
	var req joinRoomRequest
	if !h.decode(w, r, "Join", &req) {
		return
	}

	logger := h.log(r.Context(), "Join", "room_id", roomID)
	room, user, err := h.service.JoinRoom(r.Context(), roomID, req.Name)
	if err != nil {
		logger.WarnContext(r.Context(), "join failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{notFound: msgJoinRoomNotFound, backend: msgJoinRoomFailed})
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "room joined")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Room: room, User: user})
}

func (h *RoomHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID, userID := r.PathValue("id"), r.PathValue("userId")
	var req updateScheduleRequest
	if !h.decode(w, r, "UpdateSchedule", &req) {
		return
	}

	room, err := h.service.UpdateSchedule(r.Context(), roomID, userID, req.Slots)
	if err != nil {
		h.log(r.Context(), "UpdateSchedule", "room_id", roomID, "user_id", userID).WarnContext(r.Context(), "schedule update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: room})
}

func (h *RoomHandler) ToggleSlot(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID, userID := r.PathValue("id"), r.PathValue("userId")
	var req toggleSlotRequest
	if !h.decode(w, r, "ToggleSlot", &req) {
		return
	}

	room, err := h.service.ToggleSlot(r.Context(), roomID, userID, strings.TrimSpace(req.Slot))
	if err != nil {
		h.log(r.Context(), "ToggleSlot", "room_id", roomID, "user_id", userID).WarnContext(r.Context(), "slot toggle failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: room})
}

func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	roomID := r.PathValue("id")
	view, err := h.service.GetAvailability(r.Context(), roomID, r.URL.Query().Get("viewer"))
	if err != nil {
		h.log(r.Context(), "Availability", "room_id", roomID).WarnContext(r.Context(), "availability failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, view)
}

type createRoomRequest struct {
	Name        string `json:"name"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	CreatorName string `json:"creatorName"`
}

func (r createRoomRequest) toInput() application.CreateRoomInput {
	return application.CreateRoomInput{
		Name:        r.Name,
		StartDate:   strings.TrimSpace(r.StartDate),
		EndDate:     strings.TrimSpace(r.EndDate),
		CreatorName: r.CreatorName,
	}
}

type joinRoomRequest struct {
	Name string `json:"name"`
}

type updateScheduleRequest struct {
	Slots []string `json:"slots"`
}

type toggleSlotRequest struct {
	Slot string `json:"slot"`
}

type roomResponse struct {
	Room application.Room `json:"room"`
}

type memberResponse struct {
	Room application.Room `json:"room"`
	User application.User `json:"user"`
}

type listRoomsResponse struct {
	Rooms []application.Room `json:"rooms"`
}
