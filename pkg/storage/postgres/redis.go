package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/payforge/payforge/pkg/storage"
)

// EventDedup remembers processed webhook event ids in Redis so redelivered
// events are recognized across instances and restarts.
type EventDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventDedup creates a Redis-backed dedup store.
func NewEventDedup(cfg storage.Config) (*EventDedup, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.DedupTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	return &EventDedup{client: client, ttl: ttl}, nil
}

// NewEventDedupWithClient wraps an existing client; used by tests.
func NewEventDedupWithClient(client *redis.Client, ttl time.Duration) *EventDedup {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &EventDedup{client: client, ttl: ttl}
}

// Seen reports whether the event id was already marked processed.
func (d *EventDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, eventKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the event id. Called only after the event has been
// applied; the TTL bounds how long redeliveries are recognized.
func (d *EventDedup) MarkProcessed(ctx context.Context, eventID string) error {
	if err := d.client.SetNX(ctx, eventKey(eventID), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func eventKey(eventID string) string {
	return "webhook:event:" + eventID
}

// Client exposes the underlying connection for health checks.
func (d *EventDedup) Client() *redis.Client { return d.client }

// Close releases the connection.
func (d *EventDedup) Close() error { return d.client.Close() }
