// Package redis implements the request bus on Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Config holds Redis connection parameters for the bus.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

const connectionTimeout = 5 * time.Second

// subscribeBuffer sizes the request channel handed to the dispatcher.
const subscribeBuffer = 64

// Bus is a relay.Bus over a Redis pub/sub channel. Delivery follows the
// channel's semantics: at-least-once for connected subscribers, no
// acknowledgment, no replay.
type Bus struct {
	client *redis.Client
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg Config, logger *zap.Logger) (*Bus, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Bus{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, logger *zap.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

// Publish serializes the request as flat JSON and publishes it.
func (b *Bus) Publish(ctx context.Context, channel string, req relay.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription and pumps decoded requests into the
// returned channel until the context finishes. Malformed payloads are
// logged and dropped.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan relay.Request, error) {
	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %q: %w", channel, err)
	}

	out := make(chan relay.Request, subscribeBuffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var req relay.Request
				if err := json.Unmarshal([]byte(msg.Payload), &req); err != nil {
					b.logger.Warn("dropping malformed bus message",
						zap.String("channel", channel), zap.Error(err))
					continue
				}
				select {
				case out <- req:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying client connection.
func (b *Bus) Close() error {
	return b.client.Close()
}
