package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/meetsync/internal/config"
	"github.com/example/meetsync/internal/persistence"
	"github.com/example/meetsync/internal/persistence/firestore"
	"github.com/example/meetsync/internal/persistence/memory"
	"github.com/example/meetsync/internal/persistence/mongo"
	"github.com/example/meetsync/internal/persistence/sqlite"
	"github.com/example/meetsync/internal/persistence/sqlite/migration"
	"github.com/example/meetsync/internal/realtime"
)

type closeFunc func(context.Context) error

// openStore connects the backend selected by cfg.Store. Hub based backends
// publish through notifier; mongo and firestore use their native change feeds.
func openStore(ctx context.Context, cfg config.Config, hub *realtime.Hub, notifier realtime.Notifier, logger *slog.Logger) (persistence.RoomStore, closeFunc, error) {
	noClose := func(context.Context) error { return nil }

	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; rooms are lost on restart")
		return memory.New(hub, notifier), noClose, nil

	case config.StoreSQLite:
		storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN),
			sqlite.WithHub(hub),
			sqlite.WithNotifier(notifier),
			sqlite.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return nil, nil, err
		}
		return storage, func(context.Context) error { return storage.Close() }, nil

	case config.StoreMongo:
		store, err := mongo.Connect(ctx, mongo.DefaultConfig(cfg.MongoURI, cfg.MongoDatabase), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		return store, store.Close, nil

	case config.StoreFirestore:
		store, err := firestore.Connect(ctx, cfg.FirestoreProject, cfg.FirebaseCredentials, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect firestore: %w", err)
		}
		return store, func(context.Context) error { return store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
