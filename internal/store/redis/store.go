// Package redis implements the metadata store on a Redis backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Config holds Redis connection parameters for the metadata store.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// Store is a relay.MetadataStore backed by Redis with server-side TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and verifies the connection with a bounded ping.
func New(cfg Config, ttl time.Duration, logger *zap.Logger) (*Store, error) {
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

	if ttl <= 0 {
		ttl = relay.DefaultTTL
	}
	return &Store{client: client, ttl: ttl, logger: logger}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = relay.DefaultTTL
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Get returns the value for key or relay.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", relay.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set stores the value under key with the configured TTL.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Scan enumerates every live entry with its value and remaining TTL.
// Keys persisted without expiry report a nil TTL.
func (s *Store) Scan(ctx context.Context) ([]relay.Entry, error) {
	var entries []relay.Entry
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, key := range keys {
			entry, err := s.inspect(ctx, key)
			if err != nil {
				// The key may have expired between SCAN and GET.
				s.logger.Warn("skipping unreadable key", zap.String("key", key), zap.Error(err))
				continue
			}
			entries = append(entries, entry)
		}
		cursor = next
		if cursor == 0 {
			return entries, nil
		}
	}
}

func (s *Store) inspect(ctx context.Context, key string) (relay.Entry, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return relay.Entry{}, fmt.Errorf("get: %w", err)
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return relay.Entry{}, fmt.Errorf("ttl: %w", err)
	}
	entry := relay.Entry{Key: key, Value: val}
	if ttl >= 0 {
		entry.TTL = &ttl
	}
	return entry, nil
}

// Close releases the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
