package relay

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Every error a request can terminate with maps
// to exactly one of these sentinels; wrap them with %w to add context.
var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrUnsupportedDomain   = errors.New("unsupported domain")
	ErrUnreachableResource = errors.New("unreachable resource")
	ErrParsing             = errors.New("parsing error")
	ErrDownload            = errors.New("download error")
	ErrBlobRetrieving      = errors.New("blob retrieving error")
	ErrFileSizeExceeded    = errors.New("file size exceeded")
	ErrImagesNotDownloaded = errors.New("no images downloaded")

	// ErrKeyNotFound is returned by MetadataStore.Get for absent or expired keys.
	ErrKeyNotFound = errors.New("metadata key not found")

	// ErrInvalidReply marks a reply violating the one-of contract.
	// It is never retried.
	ErrInvalidReply = errors.New("invalid reply combination")
)

// DirectoryError wraps an OS error raised while creating a target directory.
type DirectoryError struct {
	Path string
	Err  error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// UserMessage maps a pipeline error to the text shown to the requester.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedDomain):
		return "🙈 Domain not supported!"
	case errors.Is(err, ErrInvalidURL):
		return "😩 Invalid URL!"
	case errors.Is(err, ErrFileSizeExceeded):
		return "🐈 File size exceeded!"
	case errors.Is(err, ErrBlobRetrieving):
		return "❌ Error retrieving file!"
	case errors.Is(err, ErrImagesNotDownloaded):
		return "❌ No images could be downloaded!"
	case errors.Is(err, ErrDownload):
		return "☢️ Error downloading video!"
	default:
		return "☢️ Something went wrong, try again later!"
	}
}
