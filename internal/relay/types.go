// Package relay defines core types shared across subsystems.
package relay

import "time"

// Filesystem and dedup constants shared by the download and retrieval paths.
const (
	VideoExtension = "mp4"
	ImageExtension = "jpeg"

	// ImagesSubdir is the directory under the target dir holding slideshow images.
	ImagesSubdir = "images"

	// DefaultTTL is how long a metadata entry marks an artifact as present.
	DefaultTTL = 24 * time.Hour

	MaxVideoBytes = 50 * 1024 * 1024
	MaxImageBytes = 10 * 1024 * 1024

	// ImageBatchSize caps how many images a single reply call may carry.
	ImageBatchSize = 10
)

// Request is a single user request consumed exactly once by a dispatcher
// worker. Only the three scalar fields travel over the bus; the reply
// capability is reconstructed locally from configuration.
type Request struct {
	CorrelationID string `json:"-"`
	ChatID        int64  `json:"chat_id"`
	MessageID     int64  `json:"message_id"`
	URL           string `json:"url"`
}

// ArtifactKind discriminates the downloaded artifact variants.
type ArtifactKind int

const (
	ArtifactVideo ArtifactKind = iota
	ArtifactImageSet
)

// Artifact is a downloaded video or ordered image set ready for delivery.
type Artifact struct {
	Kind  ArtifactKind
	Path  string   // video path, set when Kind == ArtifactVideo
	Paths []string // ordered image paths, set when Kind == ArtifactImageSet
}

// VideoArtifact wraps a single downloaded video file.
func VideoArtifact(path string) *Artifact {
	return &Artifact{Kind: ArtifactVideo, Path: path}
}

// ImageSetArtifact wraps an ordered set of downloaded images.
func ImageSetArtifact(paths []string) *Artifact {
	return &Artifact{Kind: ArtifactImageSet, Paths: paths}
}

// Result is the terminal output of handling one request.
// Exactly one of Artifact or Err is set; both nil means no content.
type Result struct {
	Artifact *Artifact
	Err      error
}

// ContentResult wraps an artifact in a successful result.
func ContentResult(a *Artifact) Result { return Result{Artifact: a} }

// NoContentResult reports that the pipeline finished without producing content.
func NoContentResult() Result { return Result{} }

// ErrorResult wraps a pipeline error.
func ErrorResult(err error) Result { return Result{Err: err} }

// Entry is one metadata store record as seen by the reconciliation sweep.
// A nil TTL means the key was persisted without expiry; normal writes
// always carry the default TTL.
type Entry struct {
	Key   string
	Value string
	TTL   *time.Duration
}

// Reply is what the dispatcher hands to the reply boundary. Exactly one
// of Text, File or Images must be set.
type Reply struct {
	ChatID    int64    `json:"chat_id"`
	MessageID int64    `json:"message_id"`
	Text      string   `json:"text,omitempty"`
	File      string   `json:"file,omitempty"`
	Images    []string `json:"images,omitempty"`
}
