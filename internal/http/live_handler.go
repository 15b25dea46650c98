package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/meetsync/internal/application"
)

const (
	liveWriteWait    = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingInterval = livePongWait * 9 / 10
	liveMaxFrameSize = 4096
)

// Frame types exchanged on the live connection.
const (
	frameSnapshot = "snapshot"
	frameError    = "error"
	frameToggle   = "toggle"
)

type liveService interface {
	application.ScheduleWriter
	GetRoom(ctx context.Context, roomID string) (application.Room, error)
	SubscribeToRoom(ctx context.Context, roomID string, onUpdate func(application.Room)) (*application.Subscription, error)
}

type connectionGauge interface {
	LiveConnectionOpened()
	LiveConnectionClosed()
}

// serverFrame is sent to clients. Snapshot frames carry the room with its
// availability for the connected user and whether a toggle is still being
// written. Error frames carry a localized message.
type serverFrame struct {
	Type string `json:"type"`
	*application.Availability
	Pending   bool   `json:"pending"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// clientFrame is received from clients: {"type":"toggle","slot":"2024-01-01:09"}.
type clientFrame struct {
	Type string `json:"type"`
	Slot string `json:"slot"`
}

// LiveHandler streams room snapshots over a WebSocket and applies the
// connected user's toggles optimistically.
type LiveHandler struct {
	service   liveService
	upgrader  websocket.Upgrader
	gauge     connectionGauge
	responder responder
	logger    *slog.Logger
}

// NewLiveHandler builds the handler. An empty allowedOrigins accepts every origin.
func NewLiveHandler(service liveService, allowedOrigins []string, gauge connectionGauge, logger *slog.Logger) *LiveHandler {
	base := defaultLogger(logger)
	return &LiveHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		gauge:     gauge,
		responder: newResponder(base),
		logger:    base,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := r.PathValue("id")
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	logger := h.log(r.Context(), "Live", "room_id", roomID, "user_id", userID)

	room, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		logger.WarnContext(r.Context(), "live room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err, failureMessages{})
		return
	}
	if userID != "" {
		if _, ok := room.Member(userID); !ok {
			vErr := &application.ValidationError{FieldErrors: map[string]string{"userId": "user is not a member of the room"}}
			h.responder.handleServiceError(r.Context(), w, vErr, failureMessages{})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the request
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	if h.gauge != nil {
		h.gauge.LiveConnectionOpened()
		defer h.gauge.LiveConnectionClosed()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := &liveSession{conn: conn, userID: userID, logger: logger}
	defer session.close()

	editor := application.NewScheduleEditor(h.service, room, userID)
	sub, err := h.service.SubscribeToRoom(ctx, roomID, func(update application.Room) {
		current, pending := editor.Apply(update)
		session.sendSnapshot(current, pending)
	})
	if err != nil {
		session.sendError(err)
		return
	}
	defer sub.Cancel()

	go func() {
		select {
		case <-sub.Done():
			if subErr := sub.Err(); subErr != nil {
				session.sendError(subErr)
			}
			session.close()
		case <-ctx.Done():
		}
	}()
	go session.keepAlive(ctx)

	logger.InfoContext(ctx, "live connection opened")
	session.readLoop(ctx, editor)
	logger.InfoContext(ctx, "live connection closed")
}

func (h *LiveHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "LiveHandler", operation, attrs...)
}

type liveSession struct {
	conn   *websocket.Conn
	userID string
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *liveSession) readLoop(ctx context.Context, editor *application.ScheduleEditor) {
	s.conn.SetReadLimit(liveMaxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WarnContext(ctx, "live connection read failed", "error", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != frameToggle {
			s.send(serverFrame{Type: frameError, ErrorCode: "BAD_REQUEST", Message: errBadRequestBody.Error()})
			continue
		}
		if s.userID == "" {
			vErr := &application.ValidationError{FieldErrors: map[string]string{"userId": "user id is required"}}
			s.sendError(vErr)
			continue
		}

		room, err := editor.Toggle(ctx, strings.TrimSpace(frame.Slot), func(local application.Room) {
			s.sendSnapshot(local, true)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.sendError(err)
		}
		_, pending := editor.Room()
		s.sendSnapshot(room, pending)
	}
}

func (s *liveSession) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
			s.writeMu.Unlock()
			if err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *liveSession) sendSnapshot(room application.Room, pending bool) {
	view := application.BuildAvailability(room, s.userID)
	s.send(serverFrame{Type: frameSnapshot, Availability: &view, Pending: pending})
}

func (s *liveSession) sendError(err error) {
	_, body := describeServiceError(err, failureMessages{})
	s.send(serverFrame{Type: frameError, ErrorCode: body.ErrorCode, Message: body.Message})
}

func (s *liveSession) send(frame serverFrame) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := s.conn.WriteJSON(frame); err != nil {
		s.logger.Debug("live frame dropped", "frame_type", frame.Type, "error", err)
	}
}

func (s *liveSession) close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}
