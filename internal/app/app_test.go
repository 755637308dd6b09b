// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediarelay/mediarelay/internal/app"
	busredis "github.com/mediarelay/mediarelay/internal/bus/redis"
	"github.com/mediarelay/mediarelay/internal/config"
	"github.com/mediarelay/mediarelay/internal/relay"
	replyredis "github.com/mediarelay/mediarelay/internal/reply/redis"
	storeredis "github.com/mediarelay/mediarelay/internal/store/redis"
)

func baseConfig() config.Config {
	return config.Config{
		Server:  config.ServerConfig{Port: 8080},
		Bus:     config.BusConfig{Provider: "memory", Channel: "channel_1"},
		Store:   config.StoreConfig{Provider: "memory", TTL: time.Hour},
		Relay: config.RelayConfig{
			TargetDir:      "downloads",
			SupportedSites: []string{"tiktok.com"},
			Concurrency:    2,
		},
		Reply: config.ReplyConfig{MaxAttempts: 3, Backoff: time.Second},
		HTTP:  config.HTTPConfig{TimeoutSeconds: 5},
	}
}

func TestNewWithMemoryProviders(t *testing.T) {
	a, err := app.New(context.Background(), baseConfig())
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.Bus())
	assert.NotNil(t, a.Replier())
	assert.NotNil(t, a.Clock())
	assert.NotNil(t, a.IDs())

	// Memory store round trip through the container.
	ctx := context.Background()
	require.NoError(t, a.Store().Set(ctx, "k", "v"))
	got, err := a.Store().Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	a.Close()
}

func TestNewWithRedisProviders(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig()
	cfg.Bus = config.BusConfig{
		Provider: "redis",
		Channel:  "channel_1",
		Redis:    busredis.Config{Address: mr.Addr()},
	}
	cfg.Store = config.StoreConfig{
		Provider: "redis",
		TTL:      time.Hour,
		Redis:    storeredis.Config{Address: mr.Addr()},
	}
	cfg.Reply.Redis = replyredis.Config{Address: mr.Addr(), Channel: "replies"}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Bus().Publish(context.Background(), "channel_1", relay.Request{URL: "https://x"}))
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cfg := baseConfig()
	cfg.Store.Provider = "postgres"
	_, err := app.New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store provider")

	cfg = baseConfig()
	cfg.Bus.Provider = "kafka"
	_, err = app.New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bus provider")
}

func TestNewFailsFastOnUnreachableRedis(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{
		Provider: "redis",
		TTL:      time.Hour,
		Redis:    storeredis.Config{Address: "127.0.0.1:1"},
	}
	_, err := app.New(context.Background(), cfg)
	require.Error(t, err)
}
