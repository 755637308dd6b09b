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

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, time.Hour, zaptest.NewLogger(t)), mr
}

func TestStoreGetSetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "7940350112393")
	require.ErrorIs(t, err, relay.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "7940350112393", "/tmp/media/7940350112393.mp4"))
	val, err := store.Get(ctx, "7940350112393")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/media/7940350112393.mp4", val)

	require.NoError(t, store.Delete(ctx, "7940350112393"))
	_, err = store.Get(ctx, "7940350112393")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound)
}

func TestStoreSetAppliesTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "id-1", "/tmp/media/id-1.mp4"))
	assert.Equal(t, time.Hour, mr.TTL("id-1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "id-1")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound)
}

func TestStoreScanReportsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "with-ttl", "/tmp/media/with-ttl.mp4"))
	// Keys written outside the normal path may carry no expiry.
	mr.Set("no-ttl", "/tmp/media/no-ttl.mp4")

	entries, err := store.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := map[string]relay.Entry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	require.NotNil(t, byKey["with-ttl"].TTL)
	assert.Equal(t, time.Hour, *byKey["with-ttl"].TTL)
	assert.Nil(t, byKey["no-ttl"].TTL)
}

func TestStoreDeleteAbsentKey(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "never-written"))
}
