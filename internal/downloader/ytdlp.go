package downloader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// downloadMarker is the stdout prefix yt-dlp uses for progress lines.
const downloadMarker = "[download]"

// YtDlp invokes the external download tool for domains without a
// specialized processor.
type YtDlp struct {
	binary string
	dir    string
	marker *Marker
	logger *zap.Logger
}

// NewYtDlp builds the generic downloader. An empty binary defaults to
// the yt-dlp on PATH.
func NewYtDlp(binary, targetDir string, marker *Marker, logger *zap.Logger) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary, dir: targetDir, marker: marker, logger: logger}
}

// Download fetches the URL into the target directory as <id>.mp4,
// skipping the subprocess entirely when the metadata store already
// records the resource.
func (y *YtDlp) Download(ctx context.Context, rawURL, id string) error {
	dest := filepath.Join(y.dir, id+"."+relay.VideoExtension)
	if y.marker.AlreadyDownloaded(ctx, id, dest) {
		y.logger.Debug("video already downloaded", zap.String("id", id))
		return nil
	}

	if err := os.MkdirAll(y.dir, 0o750); err != nil {
		return &relay.DirectoryError{Path: y.dir, Err: err}
	}

	format := fmt.Sprintf("bestvideo[ext=%s]+bestaudio[ext=m4a]/%s",
		relay.VideoExtension, relay.VideoExtension)
	cmd := exec.CommandContext(ctx, y.binary,
		rawURL,
		"-P", y.dir,
		"-f", format,
		"-o", id+".%(ext)s",
		"--no-mtime",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.Debug("downloading", zap.String("id", id), zap.String("url", rawURL))
	if err := cmd.Run(); err != nil {
		y.logger.Error("download tool failed",
			zap.String("id", id),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", relay.ErrBlobRetrieving, y.binary, err)
	}

	// Only the tool's own progress lines are interesting; its structured
	// output is not parsed.
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		if line := scanner.Text(); strings.Contains(line, downloadMarker) {
			y.logger.Debug(line)
		}
	}
	return nil
}
