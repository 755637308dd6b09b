package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mediarelay/mediarelay/internal/clock/system"
	"github.com/mediarelay/mediarelay/internal/metrics"
	storememory "github.com/mediarelay/mediarelay/internal/store/memory"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestSweepRemovesOnlyExpiredArtifacts(t *testing.T) {
	metrics.Init()
	ctx := context.Background()
	store := storememory.New(time.Hour, system.New())
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "live.mp4"))
	touch(t, filepath.Join(dir, "stale.mp4"))
	touch(t, filepath.Join(dir, "images", "live_0.jpeg"))
	touch(t, filepath.Join(dir, "images", "stale_0.jpeg"))
	touch(t, filepath.Join(dir, "notes.txt")) // not an artifact, ignored

	require.NoError(t, store.Set(ctx, "live", filepath.Join(dir, "live.mp4")))
	require.NoError(t, store.Set(ctx, "live_0", filepath.Join(dir, "images", "live_0.jpeg")))

	report, err := New(store, dir, zaptest.NewLogger(t)).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Removed)
	assert.Equal(t, 2, report.Kept)

	assert.FileExists(t, filepath.Join(dir, "live.mp4"))
	assert.FileExists(t, filepath.Join(dir, "images", "live_0.jpeg"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "stale.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "images", "stale_0.jpeg"))
}

func TestSweepEmptyDirectory(t *testing.T) {
	metrics.Init()
	store := storememory.New(time.Hour, system.New())
	report, err := New(store, t.TempDir(), zaptest.NewLogger(t)).Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestSweepHonorsCancellation(t *testing.T) {
	metrics.Init()
	store := storememory.New(time.Hour, system.New())
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(store, dir, zaptest.NewLogger(t)).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
