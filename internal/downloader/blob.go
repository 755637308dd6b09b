package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Retriever opens finished artifacts from disk and enforces size limits.
// A present metadata key with a missing file self-heals: the stale key is
// purged so the next identical request re-downloads.
type Retriever struct {
	dir           string
	marker        *Marker
	maxVideoBytes int64
	maxImageBytes int64
	logger        *zap.Logger
}

// NewRetriever builds a Retriever over the target directory. Zero limits
// fall back to the defaults.
func NewRetriever(targetDir string, marker *Marker, maxVideoBytes, maxImageBytes int64, logger *zap.Logger) *Retriever {
	if maxVideoBytes <= 0 {
		maxVideoBytes = relay.MaxVideoBytes
	}
	if maxImageBytes <= 0 {
		maxImageBytes = relay.MaxImageBytes
	}
	return &Retriever{
		dir:           targetDir,
		marker:        marker,
		maxVideoBytes: maxVideoBytes,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// VideoPath returns the expected on-disk location for a video resource.
func (r *Retriever) VideoPath(id string) string {
	return filepath.Join(r.dir, id+"."+relay.VideoExtension)
}

// ImagePath returns the expected on-disk location for one slideshow image.
func (r *Retriever) ImagePath(id string, index int) string {
	name := fmt.Sprintf("%s_%d.%s", id, index, relay.ImageExtension)
	return filepath.Join(r.dir, relay.ImagesSubdir, name)
}

// RetrieveVideo checks the downloaded file and wraps it in an artifact.
// Oversized files are rejected but left on disk for the sweep to reclaim.
func (r *Retriever) RetrieveVideo(ctx context.Context, id string) (*relay.Artifact, error) {
	path := r.VideoPath(id)
	info, err := os.Stat(path)
	if err != nil {
		r.logger.Error("video file missing", zap.String("path", path), zap.Error(err))
		r.marker.Release(ctx, id)
		return nil, fmt.Errorf("%w: %s", relay.ErrBlobRetrieving, path)
	}
	if info.Size() > r.maxVideoBytes {
		r.logger.Error("video exceeds size limit",
			zap.String("id", id),
			zap.Int64("size", info.Size()),
			zap.Int64("limit", r.maxVideoBytes),
		)
		return nil, fmt.Errorf("%w: %d bytes", relay.ErrFileSizeExceeded, info.Size())
	}
	return relay.VideoArtifact(path), nil
}

// RetrieveImages collects the downloaded slideshow images in index order.
// Missing files purge their keys and oversized files are skipped; both
// only feed an error counter. An empty final set is itself an error.
func (r *Retriever) RetrieveImages(ctx context.Context, id string, count int) (*relay.Artifact, error) {
	var paths []string
	ioErrors := 0

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("%s_%d", id, i)
		path := r.ImagePath(id, i)
		info, err := os.Stat(path)
		if err != nil {
			r.logger.Error("image file missing", zap.String("path", path), zap.Error(err))
			r.marker.Release(ctx, key)
			ioErrors++
			continue
		}
		if info.Size() > r.maxImageBytes {
			r.logger.Warn("image exceeds size limit",
				zap.String("key", key), zap.Int64("size", info.Size()))
			ioErrors++
			continue
		}
		paths = append(paths, path)
	}

	if ioErrors > 0 {
		r.logger.Error("image retrieval incomplete",
			zap.String("id", id), zap.Int("io_errors", ioErrors))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", relay.ErrImagesNotDownloaded, id)
	}
	return relay.ImageSetArtifact(paths), nil
}
