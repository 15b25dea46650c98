package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger, got %v", got)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatal("expected attached logger")
	}
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatal("nil logger should leave the context untouched")
	}
}

func TestScoped(t *testing.T) {
	var fallbackOut, requestOut bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&fallbackOut, nil))
	request := slog.New(slog.NewTextHandler(&requestOut, nil)).With("request_id", "req-1")

	t.Run("uses fallback without context logger", func(t *testing.T) {
		Scoped(context.Background(), fallback, "service", "RoomService", "JoinRoom", "room_id", "room0001").Info("done")
		line := fallbackOut.String()
		for _, want := range []string{"service=RoomService", "operation=JoinRoom", "room_id=room0001"} {
			if !strings.Contains(line, want) {
				t.Errorf("log line %q missing %q", line, want)
			}
		}
	})

	t.Run("prefers context logger", func(t *testing.T) {
		ctx := ContextWithLogger(context.Background(), request)
		Scoped(ctx, fallback, "handler", "RoomHandler", "").Info("done")
		line := requestOut.String()
		if !strings.Contains(line, "request_id=req-1") || !strings.Contains(line, "handler=RoomHandler") {
			t.Errorf("unexpected log line %q", line)
		}
		if strings.Contains(line, "operation=") {
			t.Errorf("empty operation should be omitted: %q", line)
		}
	})

	t.Run("falls back to default", func(t *testing.T) {
		if Default(nil) != slog.Default() {
			t.Fatal("expected slog.Default")
		}
	})
}
