package http

import (
	"net/http"
)

// RouterConfig wires handlers and middleware into the API router.
type RouterConfig struct {
	Rooms      *RoomHandler
	Live       *LiveHandler
	Metrics    http.Handler
	Middleware []func(http.Handler) http.Handler
}

// NewRouter registers every endpoint on a ServeMux and wraps it with
// cfg.Middleware, the first entry being outermost.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		newResponder(nil).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	if cfg.Rooms != nil {
		mux.HandleFunc("POST /rooms", cfg.Rooms.Create)
		mux.HandleFunc("GET /rooms", cfg.Rooms.List)
		mux.HandleFunc("GET /rooms/{id}", cfg.Rooms.Get)
		mux.HandleFunc("POST /rooms/{id}/members", cfg.Rooms.Join)
		mux.HandleFunc("PUT /rooms/{id}/schedules/{userId}", cfg.Rooms.UpdateSchedule)
		mux.HandleFunc("POST /rooms/{id}/schedules/{userId}/toggle", cfg.Rooms.ToggleSlot)
		mux.HandleFunc("GET /rooms/{id}/availability", cfg.Rooms.Availability)
	}

	if cfg.Live != nil {
		mux.Handle("GET /rooms/{id}/live", cfg.Live)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
