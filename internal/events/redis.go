package events

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel status events are published on.
const DefaultChannel = "qrportal:status"

// RedisForwarder republishes bus events on a Redis channel so other
// processes (signage screens, the admin UI) can follow status changes.
type RedisForwarder struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisForwarder creates a forwarder. An empty channel selects DefaultChannel.
func NewRedisForwarder(client *redis.Client, channel string) *RedisForwarder {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisForwarder{client: client, channel: channel, timeout: 2 * time.Second}
}

// Handle is an EventHandler.
func (f *RedisForwarder) Handle(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", f.channel, err)
	}
	return nil
}

// Attach subscribes the forwarder to every status event type.
func (f *RedisForwarder) Attach(bus *EventBus) {
	bus.Subscribe(TypeStatusChanged, f.Handle)
	bus.Subscribe(TypeStatusExpired, f.Handle)
}
