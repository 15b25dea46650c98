package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var allKeys = []string{
	"MEETSYNC_HTTP_PORT",
	"MEETSYNC_LOG_LEVEL",
	"MEETSYNC_STORE",
	"MEETSYNC_SQLITE_DSN",
	"MEETSYNC_MONGO_URI",
	"MEETSYNC_MONGO_DATABASE",
	"MEETSYNC_FIRESTORE_PROJECT",
	"MEETSYNC_FIREBASE_CREDENTIALS",
	"MEETSYNC_REDIS_ADDR",
	"MEETSYNC_REDIS_PASSWORD",
	"MEETSYNC_REDIS_DB",
	"MEETSYNC_KAFKA_BROKERS",
	"MEETSYNC_KAFKA_TOPIC",
	"MEETSYNC_OTLP_ENDPOINT",
	"MEETSYNC_RATE_LIMIT_PER_MINUTE",
	"MEETSYNC_ALLOWED_ORIGINS",
}

// clearEnv blanks every variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite || cfg.SQLiteDSN != "meetsync.db" {
			t.Fatalf("unexpected store defaults: %q %q", cfg.Store, cfg.SQLiteDSN)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Fatalf("expected info level, got %v", cfg.LogLevel)
		}
		if cfg.RateLimitPerMinute != 200 || cfg.KafkaTopic != "meetsync.room-events" || cfg.MongoDatabase != "meetsync" {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
		if cfg.KafkaBrokers != nil || cfg.AllowedOrigins != nil {
			t.Fatalf("expected optional lists to be empty: %+v", cfg)
		}
	})

	t.Run("reads every variable", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETSYNC_HTTP_PORT", "9090")
		t.Setenv("MEETSYNC_LOG_LEVEL", "debug")
		t.Setenv("MEETSYNC_STORE", "Mongo")
		t.Setenv("MEETSYNC_MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("MEETSYNC_REDIS_ADDR", "localhost:6379")
		t.Setenv("MEETSYNC_REDIS_DB", "2")
		t.Setenv("MEETSYNC_KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("MEETSYNC_RATE_LIMIT_PER_MINUTE", "0")
		t.Setenv("MEETSYNC_ALLOWED_ORIGINS", "https://meet.example.com")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.LogLevel != slog.LevelDebug || cfg.Store != StoreMongo {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
			t.Fatalf("unexpected redis config: %+v", cfg)
		}
		if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
			t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
		}
		if cfg.RateLimitPerMinute != 0 {
			t.Fatalf("expected rate limiting disabled, got %d", cfg.RateLimitPerMinute)
		}
		if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://meet.example.com"}) {
			t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
		}
	})

	t.Run("errors when values required by the store are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETSYNC_STORE", "firestore")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "缺少必要的環境變數: MEETSYNC_FIRESTORE_PROJECT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETSYNC_HTTP_PORT", "abc")
		t.Setenv("MEETSYNC_STORE", "postgres")
		t.Setenv("MEETSYNC_RATE_LIMIT_PER_MINUTE", "-1")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "環境變數的值無效: MEETSYNC_HTTP_PORT, MEETSYNC_STORE, MEETSYNC_RATE_LIMIT_PER_MINUTE"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("does not override existing variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MEETSYNC_HTTP_PORT", "7000")
		// present-but-empty keys count as set, so drop this one entirely
		if err := os.Unsetenv("MEETSYNC_STORE"); err != nil {
			t.Fatalf("unset: %v", err)
		}
		path := filepath.Join(t.TempDir(), ".env")
		content := "MEETSYNC_HTTP_PORT=9999\nMEETSYNC_STORE=memory\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("LoadDotEnv failed: %v", err)
		}
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 7000 || cfg.Store != StoreMemory {
			t.Fatalf("unexpected config: %+v", cfg)
		}
	})
}
