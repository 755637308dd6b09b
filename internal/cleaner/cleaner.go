// Package cleaner reconciles the artifact directory against the
// metadata store: files whose dedup key expired are removed.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/metrics"
	"github.com/mediarelay/mediarelay/internal/relay"
)

// Cleaner sweeps the target directory.
type Cleaner struct {
	store  relay.MetadataStore
	dir    string
	logger *zap.Logger
}

// New constructs a Cleaner over the given artifact directory.
func New(store relay.MetadataStore, dir string, logger *zap.Logger) *Cleaner {
	return &Cleaner{store: store, dir: dir, logger: logger}
}

// Report summarizes one sweep.
type Report struct {
	Scanned int
	Removed int
	Kept    int
}

// Sweep walks videos and slideshow images under the target directory
// and removes every file whose key is no longer in the store. A file on
// disk with a live key is the normal steady state; a file without one
// is left over from an expired entry.
func (c *Cleaner) Sweep(ctx context.Context) (Report, error) {
	c.logCatalog(ctx)

	var report Report
	videos, err := filepath.Glob(filepath.Join(c.dir, "*."+relay.VideoExtension))
	if err != nil {
		return report, fmt.Errorf("globbing videos: %w", err)
	}
	images, err := filepath.Glob(filepath.Join(c.dir, relay.ImagesSubdir, "*."+relay.ImageExtension))
	if err != nil {
		return report, fmt.Errorf("globbing images: %w", err)
	}

	for _, path := range append(videos, images...) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		_, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			report.Kept++
		case errors.Is(err, relay.ErrKeyNotFound):
			if err := os.Remove(path); err != nil {
				c.logger.Error("removing stale artifact failed",
					zap.String("path", path), zap.Error(err))
				continue
			}
			c.logger.Info("removed stale artifact",
				zap.String("path", path), zap.String("key", key))
			report.Removed++
		default:
			c.logger.Error("store lookup failed during sweep",
				zap.String("key", key), zap.Error(err))
		}
	}

	metrics.ObserveCleanerRemoval(report.Removed)
	c.logger.Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("removed", report.Removed),
		zap.Int("kept", report.Kept))
	return report, nil
}

// logCatalog dumps the live store entries with their remaining TTLs, a
// diagnostic snapshot of what the sweep will keep.
func (c *Cleaner) logCatalog(ctx context.Context) {
	entries, err := c.store.Scan(ctx)
	if err != nil {
		c.logger.Warn("store scan failed", zap.Error(err))
		return
	}
	for _, e := range entries {
		field := zap.Skip()
		if e.TTL != nil {
			field = zap.Duration("ttl", *e.TTL)
		}
		c.logger.Debug("live catalog entry", zap.String("key", e.Key), field)
	}
	c.logger.Info("live catalog scanned", zap.Int("entries", len(entries)))
}
