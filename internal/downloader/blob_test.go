package downloader

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
	"github.com/mediarelay/mediarelay/internal/relay"
	"github.com/mediarelay/mediarelay/internal/store/memory"
)

func newTestRetriever(t *testing.T, maxVideo, maxImage int64) (*Retriever, *memory.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := memory.New(time.Hour, system.New())
	marker := NewMarker(store, zaptest.NewLogger(t))
	return NewRetriever(dir, marker, maxVideo, maxImage, zaptest.NewLogger(t)), store, dir
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
}

func TestRetrieveVideo(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRetriever(t, 1024, 1024)
	writeFile(t, r.VideoPath("123"), 100)

	artifact, err := r.RetrieveVideo(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, relay.ArtifactVideo, artifact.Kind)
	assert.Equal(t, r.VideoPath("123"), artifact.Path)
}

func TestRetrieveVideoSizeBoundary(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRetriever(t, 4, 1024)

	writeFile(t, r.VideoPath("exact"), 4)
	_, err := r.RetrieveVideo(context.Background(), "exact")
	assert.NoError(t, err, "a file of exactly the limit is accepted")

	writeFile(t, r.VideoPath("over"), 5)
	_, err = r.RetrieveVideo(context.Background(), "over")
	assert.ErrorIs(t, err, relay.ErrFileSizeExceeded)
	// Oversized files stay on disk; the sweep reclaims them later.
	_, statErr := os.Stat(r.VideoPath("over"))
	assert.NoError(t, statErr)
}

func TestRetrieveVideoSelfHeals(t *testing.T) {
	t.Parallel()
	r, store, _ := newTestRetriever(t, 1024, 1024)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "ghost", r.VideoPath("ghost")))

	_, err := r.RetrieveVideo(ctx, "ghost")
	require.ErrorIs(t, err, relay.ErrBlobRetrieving)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound, "stale key must be purged")
}

func TestRetrieveImages(t *testing.T) {
	t.Parallel()
	r, store, _ := newTestRetriever(t, 1024, 1024)
	ctx := context.Background()

	writeFile(t, r.ImagePath("slide", 0), 10)
	writeFile(t, r.ImagePath("slide", 2), 10)
	require.NoError(t, store.Set(ctx, "slide_1", r.ImagePath("slide", 1)))

	artifact, err := r.RetrieveImages(ctx, "slide", 3)
	require.NoError(t, err)
	assert.Equal(t, relay.ArtifactImageSet, artifact.Kind)
	assert.Len(t, artifact.Paths, 2, "missing image is skipped, not fatal")

	_, err = store.Get(ctx, "slide_1")
	assert.ErrorIs(t, err, relay.ErrKeyNotFound, "missing image purges its key")
}

func TestRetrieveImagesOversizedSkipped(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRetriever(t, 1024, 8)
	writeFile(t, r.ImagePath("slide", 0), 16)
	writeFile(t, r.ImagePath("slide", 1), 4)

	artifact, err := r.RetrieveImages(context.Background(), "slide", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ImagePath("slide", 1)}, artifact.Paths)
}

func TestRetrieveImagesAllMissing(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRetriever(t, 1024, 1024)
	_, err := r.RetrieveImages(context.Background(), "slide", 2)
	assert.ErrorIs(t, err, relay.ErrImagesNotDownloaded)
}
