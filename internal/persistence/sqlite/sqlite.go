// Package sqlite stores room documents as JSON rows in a SQLite database.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/persistence/sqlite/migration"
	"github.com/example/meetsync/internal/realtime"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Storage is a persistence.RoomStore backed by SQLite.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper

	writeMu  sync.Mutex
	hub      *realtime.Hub
	notifier realtime.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

var _ persistence.RoomStore = (*Storage)(nil)

// Option customises a Storage.
type Option func(*Storage)

// WithHub sets the hub that serves WatchRoom.
func WithHub(hub *realtime.Hub) Option {
	return func(s *Storage) { s.hub = hub }
}

// WithNotifier sets where committed writes are announced. Defaults to the hub.
func WithNotifier(n realtime.Notifier) Option {
	return func(s *Storage) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) { s.logger = logger }
}

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

// WithRetryConfig overrides the lock retry policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Storage) { s.retry = NewRetryHelper(cfg) }
}

// Open connects to the database described by cfg. Call Migrate before use.
func Open(cfg migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = realtime.NewHub()
	}
	if s.notifier == nil {
		s.notifier = s.hub
	}
	s.logger = s.logger.With("component", "sqlite")
	return s, nil
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := migration.NewManager(s.pool.DB(), Migrations(), s.logger).Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.pool.Close()
}
