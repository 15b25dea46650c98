package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/persistence/sqlite/migration"
	"github.com/example/meetsync/internal/persistence/storetest"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	cfg := migration.DefaultSQLiteConfig(filepath.Join(t.TempDir(), "meetsync.db"))
	storage, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := storage.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return storage
}

func TestStorageConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.RoomStore {
		return openTestStorage(t)
	})
}

func TestStorageInMemoryDatabase(t *testing.T) {
	storage, err := Open(migration.InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := storage.PutRoom(ctx, storetest.SampleRoom("mem")); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}
	if _, err := storage.GetRoom(ctx, "mem"); err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
}

func TestStorageMigrateIsIdempotent(t *testing.T) {
	storage := openTestStorage(t)
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestStorageUpdateRejectsUnknownPath(t *testing.T) {
	storage := openTestStorage(t)
	ctx := context.Background()
	room := storetest.SampleRoom("r1")
	if err := storage.PutRoom(ctx, room); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}

	err := storage.UpdateRoom(ctx, "r1", []persistence.FieldUpdate{
		persistence.SetSchedule("r1-creator", []string{"2024-01-01:09"}),
		{Path: "colour", Op: persistence.OpSet, Value: "red"},
	})
	if !errors.Is(err, persistence.ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}

	got, err := storage.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if len(got.Schedules["r1-creator"]) != 0 {
		t.Fatalf("rejected batch must not be partially applied, got %v", got.Schedules)
	}
}

type recordingNotifier struct {
	rooms []persistence.Room
}

func (n *recordingNotifier) Notify(_ context.Context, room persistence.Room) error {
	n.rooms = append(n.rooms, room)
	return nil
}

func TestStorageNotifiesCommittedDocuments(t *testing.T) {
	notifier := &recordingNotifier{}
	storage, err := Open(migration.DefaultSQLiteConfig(filepath.Join(t.TempDir(), "n.db")), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer storage.Close()
	ctx := context.Background()
	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	if err := storage.PutRoom(ctx, storetest.SampleRoom("r1")); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}
	if err := storage.UpdateRoom(ctx, "r1", []persistence.FieldUpdate{persistence.SetSchedule("r1-creator", []string{"2024-01-02:10"})}); err != nil {
		t.Fatalf("UpdateRoom failed: %v", err)
	}
	if err := storage.UpdateRoom(ctx, "missing", []persistence.FieldUpdate{persistence.SetName("x")}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if len(notifier.rooms) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.rooms))
	}
	if got := notifier.rooms[1].Schedules["r1-creator"]; len(got) != 1 || got[0] != "2024-01-02:10" {
		t.Fatalf("second notification should carry the update, got %v", got)
	}
}

func TestErrorMapper(t *testing.T) {
	mapper := NewErrorMapper()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: persistence.ErrNotFound},
		{name: "locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: ErrDatabaseLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.MapError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		orig := errors.New("syntax error")
		if got := mapper.MapError(orig); got != orig {
			t.Fatalf("expected original error, got %v", got)
		}
	})
}

func TestRetryHelper(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}

	t.Run("retries locked errors until success", func(t *testing.T) {
		attempts := 0
		err := NewRetryHelper(cfg).WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := NewRetryHelper(cfg).WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("database is locked")
		})
		if !errors.Is(err, ErrDatabaseLocked) {
			t.Fatalf("expected ErrDatabaseLocked, got %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		attempts := 0
		err := NewRetryHelper(cfg).WithRetry(context.Background(), func() error {
			attempts++
			return persistence.ErrNotFound
		})
		if !errors.Is(err, persistence.ErrNotFound) || attempts != 1 {
			t.Fatalf("expected one attempt with ErrNotFound, got %d attempts and %v", attempts, err)
		}
	})
}
