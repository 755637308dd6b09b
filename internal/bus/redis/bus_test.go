package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mediarelay/mediarelay/internal/relay"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, zaptest.NewLogger(t))
}

func TestBusRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := bus.Subscribe(ctx, "media_requests")
	require.NoError(t, err)

	want := relay.Request{ChatID: -100123, MessageID: 55, URL: "https://www.tiktok.com/@user/video/123"}
	require.NoError(t, bus.Publish(ctx, "media_requests", want))

	select {
	case got := <-out:
		assert.Equal(t, want.ChatID, got.ChatID)
		assert.Equal(t, want.MessageID, got.MessageID)
		assert.Equal(t, want.URL, got.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
	}
}

func TestBusDropsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus := NewWithClient(client, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := bus.Subscribe(ctx, "media_requests")
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, "media_requests", "{not json").Err())
	want := relay.Request{ChatID: 1, MessageID: 2, URL: "https://youtu.be/xyz"}
	require.NoError(t, bus.Publish(ctx, "media_requests", want))

	select {
	case got := <-out:
		assert.Equal(t, want.URL, got.URL, "malformed message should be skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
	}
}
