// Package pubsub implements the request bus on Google Cloud Pub/Sub.
// It is an alternative to the Redis provider for managed deployments.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Config identifies the topic and subscription used as the bus.
type Config struct {
	ProjectID    string `mapstructure:"project_id"`
	TopicID      string `mapstructure:"topic_id"`
	Subscription string `mapstructure:"subscription"`
}

const subscribeBuffer = 64

// Bus is a relay.Bus over a Pub/Sub topic.
type Bus struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	cfg    Config
	logger *zap.Logger
}

// New creates the client and verifies the topic exists. It authenticates
// through Application Default Credentials.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Bus, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", cfg.TopicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}
	return &Bus{client: client, topic: topic, cfg: cfg, logger: logger}, nil
}

// Publish sends the request to the topic. The send is asynchronous and
// fire-and-forget; the client batches and retries in the background.
func (b *Bus) Publish(ctx context.Context, _ string, req relay.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_ = b.topic.Publish(ctx, &pubsub.Message{Data: payload})
	return nil
}

// Subscribe consumes the configured subscription and forwards decoded
// requests until the context finishes. Messages are acked regardless of
// processing outcome; the pipeline has no dead-letter path.
func (b *Bus) Subscribe(ctx context.Context, _ string) (<-chan relay.Request, error) {
	if b.cfg.Subscription == "" {
		return nil, fmt.Errorf("pubsub subscription is required")
	}
	sub := b.client.Subscription(b.cfg.Subscription)
	out := make(chan relay.Request, subscribeBuffer)
	go func() {
		defer close(out)
		err := sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			defer msg.Ack()
			var req relay.Request
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				b.logger.Warn("dropping malformed bus message", zap.Error(err))
				return
			}
			select {
			case out <- req:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			b.logger.Error("pubsub receive terminated", zap.Error(err))
		}
	}()
	return out, nil
}

// Close stops the topic publisher and closes the client.
func (b *Bus) Close() error {
	b.topic.Stop()
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
