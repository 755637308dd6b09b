package relay

import (
	"context"
	"time"
)

// MetadataStore is the shared key-value dedup cache and durable catalog.
// Set always applies the default TTL; Scan enumerates every live entry
// for the reconciliation sweep. All operations are safe for concurrent
// use; dedup is best-effort, not linearizable.
type MetadataStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context) ([]Entry, error)
}

// Bus decouples the front end (publisher) from the dispatcher
// (subscriber). Delivery is at-least-once with no acknowledgment.
type Bus interface {
	Publish(ctx context.Context, channel string, req Request) error
	Subscribe(ctx context.Context, channel string) (<-chan Request, error)
	Close() error
}

// Processor resolves a validated URL into a downloadable artifact.
// Process is single-use and not reentrant; a nil artifact with a nil
// error means the processor detected a shape it could not resolve.
type Processor interface {
	Process(ctx context.Context) (*Artifact, error)
}

// Replier delivers exactly one of text, file or image batch back to the
// original requester.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
}

// RetryPolicy decides whether and when a failed side effect is reattempted.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}
