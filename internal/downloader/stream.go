package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Streamer downloads resolved media URLs by streaming response bytes
// straight to disk, so artifact size never bounds memory.
type Streamer struct {
	client *http.Client
	logger *zap.Logger
}

// NewStreamer builds a Streamer with the given request timeout.
func NewStreamer(timeout time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Download GETs the URL with the supplied headers and writes the body to
// dest, creating parent directories as needed. Existing files are
// overwritten in place, which keeps retries idempotent.
func (s *Streamer) Download(ctx context.Context, rawURL, dest string, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", relay.ErrUnreachableResource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", relay.ErrUnreachableResource, resp.StatusCode)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &relay.DirectoryError{Path: dir, Err: err}
	}

	file, err := os.Create(dest)
	if err != nil {
		return &relay.DirectoryError{Path: dest, Err: err}
	}
	defer func() { _ = file.Close() }()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("%w: stream to %s: %v", relay.ErrDownload, dest, err)
	}
	s.logger.Debug("streamed media", zap.String("dest", dest), zap.Int64("bytes", written))
	return nil
}
