package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/meetsync/internal/persistence/sqlite"
	"github.com/example/meetsync/internal/persistence/sqlite/migration"
	"github.com/example/meetsync/internal/realtime"
)

// SQLiteHarness provides a migrated SQLite room store in a temporary
// directory together with the hub that serves its watches.
type SQLiteHarness struct {
	Store *sqlite.Storage
	Hub   *realtime.Hub

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a temporary database. Close is also
// registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "meetsync.db")
	hub := realtime.NewHub()

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(path), sqlite.WithHub(hub))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store: storage,
		Hub:   hub,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}
