// Package downloader retrieves media bytes onto local disk and hands
// finished artifacts back to the pipeline.
package downloader

import (
	"context"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Marker performs the check-then-set dedup against the metadata store.
// The check is not atomic: two concurrent requests for the same resource
// may both download, which is tolerated because downloads overwrite in
// place.
type Marker struct {
	store  relay.MetadataStore
	logger *zap.Logger
}

// NewMarker builds a Marker over the shared metadata store.
func NewMarker(store relay.MetadataStore, logger *zap.Logger) *Marker {
	return &Marker{store: store, logger: logger}
}

// AlreadyDownloaded reports whether the key is present. An absent key is
// claimed immediately by writing the expected artifact path under it.
func (m *Marker) AlreadyDownloaded(ctx context.Context, key, path string) bool {
	if _, err := m.store.Get(ctx, key); err == nil {
		return true
	}
	m.logger.Debug("claiming download key", zap.String("key", key), zap.String("path", path))
	if err := m.store.Set(ctx, key, path); err != nil {
		m.logger.Warn("failed to claim download key", zap.String("key", key), zap.Error(err))
	}
	return false
}

// Release removes a stale key whose artifact turned out to be missing.
func (m *Marker) Release(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to release download key", zap.String("key", key), zap.Error(err))
	}
}
