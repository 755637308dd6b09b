package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediarelay/mediarelay/internal/relay"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := New(time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "id", "/tmp/media/id.mp4"))
	val, err := store.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/media/id.mp4", val)

	require.NoError(t, store.Delete(ctx, "id"))
	_, err = store.Get(ctx, "id")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := New(time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "id", "path"))
	clock.now = clock.now.Add(2 * time.Hour)
	_, err := store.Get(ctx, "id")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound)

	entries, err := store.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryStoreScanTTL(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := New(time.Hour, clock)
	require.NoError(t, store.Set(context.Background(), "id", "path"))

	entries, err := store.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].TTL)
	assert.Equal(t, time.Hour, *entries[0].TTL)
}
