package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends selectable with MEETSYNC_STORE.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
)

// Config captures environment driven configuration values for the MeetSync service.
type Config struct {
	HTTPPort int
	LogLevel slog.Level
	Store    string

	SQLiteDSN string

	MongoURI      string
	MongoDatabase string

	FirestoreProject    string
	FirebaseCredentials string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string

	RateLimitPerMinute int
	AllowedOrigins     []string
}

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Values required by the selected store
// are validated and missing or malformed entries are reported together in a
// localized error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           8080,
		LogLevel:           slog.LevelInfo,
		Store:              StoreSQLite,
		SQLiteDSN:          "meetsync.db",
		MongoDatabase:      "meetsync",
		KafkaTopic:         "meetsync.room-events",
		RateLimitPerMinute: 200,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("MEETSYNC_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "MEETSYNC_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if levelValue := env("MEETSYNC_LOG_LEVEL"); levelValue != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(levelValue)); err != nil {
			invalid = append(invalid, "MEETSYNC_LOG_LEVEL")
		}
	}

	if store := strings.ToLower(env("MEETSYNC_STORE")); store != "" {
		switch store {
		case StoreMemory, StoreSQLite, StoreMongo, StoreFirestore:
			cfg.Store = store
		default:
			invalid = append(invalid, "MEETSYNC_STORE")
		}
	}

	if dsn := env("MEETSYNC_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.MongoURI = env("MEETSYNC_MONGO_URI")
	if database := env("MEETSYNC_MONGO_DATABASE"); database != "" {
		cfg.MongoDatabase = database
	}
	if cfg.Store == StoreMongo && cfg.MongoURI == "" {
		missing = append(missing, "MEETSYNC_MONGO_URI")
	}

	cfg.FirestoreProject = env("MEETSYNC_FIRESTORE_PROJECT")
	cfg.FirebaseCredentials = env("MEETSYNC_FIREBASE_CREDENTIALS")
	if cfg.Store == StoreFirestore && cfg.FirestoreProject == "" {
		missing = append(missing, "MEETSYNC_FIRESTORE_PROJECT")
	}

	cfg.RedisAddr = env("MEETSYNC_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("MEETSYNC_REDIS_PASSWORD")
	if dbValue := env("MEETSYNC_REDIS_DB"); dbValue != "" {
		db, err := strconv.Atoi(dbValue)
		if err != nil || db < 0 {
			invalid = append(invalid, "MEETSYNC_REDIS_DB")
		} else {
			cfg.RedisDB = db
		}
	}

	cfg.KafkaBrokers = splitList(env("MEETSYNC_KAFKA_BROKERS"))
	if topic := env("MEETSYNC_KAFKA_TOPIC"); topic != "" {
		cfg.KafkaTopic = topic
	}

	cfg.OTLPEndpoint = env("MEETSYNC_OTLP_ENDPOINT")

	if limitValue := env("MEETSYNC_RATE_LIMIT_PER_MINUTE"); limitValue != "" {
		limit, err := strconv.Atoi(limitValue)
		if err != nil || limit < 0 {
			invalid = append(invalid, "MEETSYNC_RATE_LIMIT_PER_MINUTE")
		} else {
			cfg.RateLimitPerMinute = limit
		}
	}

	cfg.AllowedOrigins = splitList(env("MEETSYNC_ALLOWED_ORIGINS"))

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("缺少必要的環境變數: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境變數的值無效: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
