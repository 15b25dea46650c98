package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/example/meetsync/internal/ids"
	"github.com/example/meetsync/internal/persistence"
)

// ChannelPrefix prefixes the Redis channel of every room.
const ChannelPrefix = "meetsync:rooms:"

type envelope struct {
	Origin string           `json:"origin"`
	Room   persistence.Room `json:"room"`
}

// RedisBridge publishes local snapshots to Redis and replays snapshots from
// other instances into the local hub.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	origin string
	logger *slog.Logger
}

// NewRedisBridge wires hub to client. Run must be started for remote
// snapshots to arrive.
func NewRedisBridge(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{client: client, hub: hub, origin: ids.New(), logger: logger.With("component", "redis_bridge")}
}

// Notify publishes room locally and to the other instances.
func (b *RedisBridge) Notify(ctx context.Context, room persistence.Room) error {
	b.hub.Publish(room)

	payload, err := json.Marshal(envelope{Origin: b.origin, Room: room})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelPrefix+room.ID, payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Run relays remote snapshots until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s*: %w", ChannelPrefix, err)
	}
	b.logger.InfoContext(ctx, "redis bridge subscribed", "pattern", ChannelPrefix+"*")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.handle(ctx, msg.Payload)
		}
	}
}

func (b *RedisBridge) handle(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.WarnContext(ctx, "discarding malformed snapshot", "error", err)
		return
	}
	if env.Origin == b.origin || env.Room.ID == "" {
		return
	}
	b.hub.Publish(env.Room.Normalize())
}
