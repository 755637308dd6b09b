// Package redis publishes replies on a Redis channel consumed by the
// chat front end.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
	"github.com/mediarelay/mediarelay/internal/reply"
)

const connectTimeout = 5 * time.Second

// Config holds connection settings for the reply channel.
type Config struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Replier implements relay.Replier on top of Redis pub/sub. Image sets
// larger than one batch are published as multiple messages.
type Replier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(cfg Config, logger *zap.Logger) (*Replier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Address, err)
	}
	return NewWithClient(client, cfg.Channel, logger), nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *redis.Client, channel string, logger *zap.Logger) *Replier {
	return &Replier{client: client, channel: channel, logger: logger}
}

// Reply publishes the reply to the front end channel. The one-of
// contract is checked first; an invalid combination is rejected without
// publishing anything.
func (r *Replier) Reply(ctx context.Context, rep relay.Reply) error {
	if err := reply.Validate(rep); err != nil {
		r.logger.Error("rejecting reply with invalid content combination",
			zap.Int64("chat_id", rep.ChatID), zap.Error(err))
		return err
	}
	if len(rep.Images) == 0 {
		return r.publish(ctx, rep)
	}
	for _, batch := range reply.Chunk(rep.Images, relay.ImageBatchSize) {
		part := rep
		part.Images = batch
		if err := r.publish(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replier) publish(ctx context.Context, rep relay.Reply) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing reply to %q: %w", r.channel, err)
	}
	r.logger.Debug("reply published",
		zap.String("channel", r.channel),
		zap.Int64("chat_id", rep.ChatID),
		zap.Int64("message_id", rep.MessageID))
	return nil
}

// Close releases the connection.
func (r *Replier) Close() error {
	return r.client.Close()
}
