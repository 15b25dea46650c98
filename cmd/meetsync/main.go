package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/meetsync/internal/application"
	"github.com/example/meetsync/internal/config"
	"github.com/example/meetsync/internal/events"
	httptransport "github.com/example/meetsync/internal/http"
	"github.com/example/meetsync/internal/metrics"
	"github.com/example/meetsync/internal/realtime"
	"github.com/example/meetsync/internal/roomstore"
	"github.com/example/meetsync/internal/telemetry"
)

const (
	serviceName    = "meetsync"
	serviceVersion = "0.1.0"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		bootstrap.Error("failed to load .env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("meetsync stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	hub := realtime.NewHub()
	var notifier realtime.Notifier = hub
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		bridge := realtime.NewRedisBridge(client, hub, logger)
		notifier = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("redis bridge stopped", "error", err)
			}
		}()
	}

	backend, closeStore, err := openStore(ctx, cfg, hub, notifier, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close event publisher", "error", err)
		}
	}()

	registry := metrics.New()
	service := application.NewRoomServiceWithLogger(roomstore.New(backend), nil, time.Now, logger,
		application.WithEventPublisher(eventAdapter{publisher: publisher}),
		application.WithOperationRecorder(registry),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(cfg, service, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("meetsync API listening", "addr", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newHandler assembles the router. Live connections are long lived, so the
// server sets no write timeout and relies on the WebSocket write deadlines.
func newHandler(cfg config.Config, service *application.RoomService, registry *metrics.Registry, logger *slog.Logger) http.Handler {
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:   httptransport.NewRoomHandler(service, logger),
		Live:    httptransport.NewLiveHandler(service, cfg.AllowedOrigins, registry, logger),
		Metrics: registry.Handler(),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RateLimit(cfg.RateLimitPerMinute, logger),
			httptransport.Metrics(registry),
		},
	})
	return otelhttp.NewHandler(router, "meetsync.http")
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return publisher, nil
}

// eventAdapter forwards application room events to the broker publisher.
type eventAdapter struct {
	publisher events.Publisher
}

func (a eventAdapter) PublishRoomEvent(ctx context.Context, event application.RoomEvent) error {
	return a.publisher.Publish(ctx, events.Event{
		Type:       events.Type(event.Type),
		RoomID:     event.RoomID,
		UserID:     event.UserID,
		SlotCount:  event.SlotCount,
		OccurredAt: event.OccurredAt,
	})
}
