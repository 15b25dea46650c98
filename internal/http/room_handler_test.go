package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/availability"
	"github.com/example/meetsync/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, rooms ...testfixtures.RoomFixture) (http.Handler, *testfixtures.MemoryHarness) {
	t.Helper()
	harness := testfixtures.NewMemoryHarness(t, rooms...)
	logger := discardLogger()
	router := NewRouter(RouterConfig{
		Rooms: NewRoomHandler(harness.Service, logger),
		Live:  NewLiveHandler(harness.Service, nil, nil, logger),
	})
	return router, harness
}

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRoomHandler_Create(t *testing.T) {
	t.Run("returns the room and its creator", func(t *testing.T) {
		router, harness := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":"Offsite","startDate":"2024-01-01","endDate":"2024-01-02","creatorName":"Alice"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody[memberResponse](t, rec)
		if body.Room.ID != "id000001" || body.User.ID != "id000002" || body.Room.CreatedBy != body.User.ID {
			t.Fatalf("unexpected response %+v", body)
		}
		if got := body.Room.StartDate.String(); got != "2024-01-01" {
			t.Fatalf("start date = %q", got)
		}

		stored, err := harness.Documents.GetRoom(context.Background(), body.Room.ID)
		if err != nil {
			t.Fatalf("room not stored: %v", err)
		}
		if stored.StartDate != "2024-01-01" || len(stored.Users) != 1 {
			t.Fatalf("stored document = %+v", stored)
		}
	})

	t.Run("missing fields yield localized 422", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":"","startDate":"","endDate":"","creatorName":""}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.Message != msgFillAllFields {
			t.Fatalf("message = %q", body.Message)
		}
		if body.Errors["creatorName"] != "請輸入姓名" {
			t.Fatalf("errors = %v", body.Errors)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":"n","startDate":"2024-01-02","endDate":"2024-01-01","creatorName":"A"}`)
		body := decodeBody[errorResponse](t, rec)
		if rec.Code != http.StatusUnprocessableEntity || body.Message != "結束日期必須晚於開始日期" {
			t.Fatalf("got %d %+v", rec.Code, body)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorCode != "BAD_REQUEST" {
			t.Fatalf("unexpected body %+v", body)
		}
	})
}

func TestRoomHandler_Join(t *testing.T) {
	room := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room0001"), testfixtures.WithCreator("user0001", "Alice"))

	t.Run("joins and re-enters by name", func(t *testing.T) {
		router, _ := newTestRouter(t, room)

		first := doJSON(t, router, http.MethodPost, "/rooms/room0001/members", `{"name":"Bob"}`)
		if first.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
		}
		joined := decodeBody[memberResponse](t, first)

		again := decodeBody[memberResponse](t, doJSON(t, router, http.MethodPost, "/rooms/room0001/members", `{"name":" bob "}`))
		if again.User.ID != joined.User.ID || len(again.Room.Users) != 2 {
			t.Fatalf("expected re-entry as %s, got %+v", joined.User.ID, again)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/rooms/nope/members", `{"name":"Bob"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.Message != msgJoinRoomNotFound {
			t.Fatalf("message = %q", body.Message)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		router, _ := newTestRouter(t, room)

		rec := doJSON(t, router, http.MethodPost, "/rooms/room0001/members", `{"name":"  "}`)
		if body := decodeBody[errorResponse](t, rec); rec.Code != http.StatusUnprocessableEntity || body.Message != "請輸入姓名" {
			t.Fatalf("got %d %+v", rec.Code, body)
		}
	})
}

func TestRoomHandler_ReadEndpoints(t *testing.T) {
	alpha := testfixtures.NewRoomFixture(
		testfixtures.WithRoomID("room0001"),
		testfixtures.WithRoomName("Alpha"),
		testfixtures.WithCreator("user0001", "Alice"),
		testfixtures.WithSlots("user0001", "2024-01-01:09"),
		testfixtures.WithMember("user0002", "Bob", "2024-01-01:09", "2024-01-01:10"),
	)
	beta := testfixtures.NewRoomFixture(
		testfixtures.WithRoomID("room0002"),
		testfixtures.WithRoomName("beta"),
		testfixtures.WithCreator("user0003", "alice"),
	)
	other := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room0003"), testfixtures.WithCreator("user0004", "Carol"))
	router, _ := newTestRouter(t, beta, other, alpha)

	t.Run("get room", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rooms/room0001", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body := decodeBody[roomResponse](t, rec); body.Room.Name != "Alpha" {
			t.Fatalf("room = %+v", body.Room)
		}
		if rec := doJSON(t, router, http.MethodGet, "/rooms/missing", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("list rooms for a user name", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rooms?user=ALICE", "")
		body := decodeBody[listRoomsResponse](t, rec)
		if len(body.Rooms) != 2 || body.Rooms[0].ID != "room0001" || body.Rooms[1].ID != "room0002" {
			t.Fatalf("rooms = %+v", body.Rooms)
		}

		empty := doJSON(t, router, http.MethodGet, "/rooms?user=nobody", "")
		if strings.TrimSpace(empty.Body.String()) != `{"rooms":[]}` {
			t.Fatalf("expected empty list, got %s", empty.Body.String())
		}
	})

	t.Run("availability grid", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/rooms/room0001/availability?viewer=user0002", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[application.Availability](t, rec)
		if body.Grid.TotalUsers != 2 || len(body.Grid.Days) != 2 {
			t.Fatalf("grid = %+v", body.Grid)
		}
		cells := body.Grid.Days[0].Cells
		if cells[9].Count != 2 || cells[9].Level != availability.LevelSelf {
			t.Fatalf("09:00 = %+v", cells[9])
		}
		if len(body.Participants) != 2 || !body.Participants[0].Creator || body.Participants[1].SelectedCount != 2 {
			t.Fatalf("participants = %+v", body.Participants)
		}
	})
}

func TestRoomHandler_ScheduleEndpoints(t *testing.T) {
	room := testfixtures.NewRoomFixture(testfixtures.WithRoomID("room0001"), testfixtures.WithCreator("user0001", "Alice"))

	t.Run("replace and toggle", func(t *testing.T) {
		router, harness := newTestRouter(t, room)

		rec := doJSON(t, router, http.MethodPut, "/rooms/room0001/schedules/user0001", `{"slots":["2024-01-01:09","2024-01-01:10"]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = doJSON(t, router, http.MethodPost, "/rooms/room0001/schedules/user0001/toggle", `{"slot":"2024-01-01:09"}`)
		body := decodeBody[roomResponse](t, rec)
		if got := body.Room.Schedules["user0001"]; len(got) != 1 || got[0] != "2024-01-01:10" {
			t.Fatalf("slots after toggle = %v", got)
		}

		stored, _ := harness.Documents.GetRoom(context.Background(), "room0001")
		if len(stored.Schedules["user0001"]) != 1 {
			t.Fatalf("stored slots = %v", stored.Schedules["user0001"])
		}
	})

	t.Run("rejects slots outside the room", func(t *testing.T) {
		router, _ := newTestRouter(t, room)

		rec := doJSON(t, router, http.MethodPut, "/rooms/room0001/schedules/user0001", `{"slots":["2024-02-01:09"]}`)
		body := decodeBody[errorResponse](t, rec)
		if rec.Code != http.StatusUnprocessableEntity || body.Errors["slots"] != "時段不在空間的日期範圍內" {
			t.Fatalf("got %d %+v", rec.Code, body)
		}
	})

	t.Run("rejects strangers", func(t *testing.T) {
		router, _ := newTestRouter(t, room)

		rec := doJSON(t, router, http.MethodPost, "/rooms/room0001/schedules/mallory/toggle", `{"slot":"2024-01-01:09"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

type failingRoomService struct {
	roomService
	err error
}

func (f failingRoomService) CreateRoom(context.Context, application.CreateRoomInput) (application.Room, application.User, error) {
	return application.Room{}, application.User{}, f.err
}

func (f failingRoomService) JoinRoom(context.Context, string, string) (application.Room, application.User, error) {
	return application.Room{}, application.User{}, f.err
}

func TestRoomHandler_BackendFailures(t *testing.T) {
	backend := &application.BackendError{Op: "put room", Err: errors.New("disk full")}
	router := NewRouter(RouterConfig{Rooms: NewRoomHandler(failingRoomService{err: backend}, discardLogger())})

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		message string
	}{
		{name: "create", method: http.MethodPost, target: "/rooms", body: `{}`, message: msgCreateRoomFailed},
		{name: "join", method: http.MethodPost, target: "/rooms/r/members", body: `{"name":"A"}`, message: msgJoinRoomFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", rec.Code)
			}
			if body := decodeBody[errorResponse](t, rec); body.Message != tt.message {
				t.Fatalf("message = %q", body.Message)
			}
		})
	}
}

func TestRouter_HealthAndMethods(t *testing.T) {
	router, _ := newTestRouter(t)

	if rec := doJSON(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, "/rooms/abc", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
