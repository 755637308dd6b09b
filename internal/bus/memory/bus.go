// Package memory provides an in-process bus for tests and local runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/mediarelay/mediarelay/internal/relay"
)

// Bus is a channel-backed relay.Bus. Channel names are ignored; a single
// stream connects publishers to the subscriber.
type Bus struct {
	ch      chan relay.Request
	closeMu sync.Mutex
	closed  bool
}

// New constructs a bus with the provided capacity.
func New(capacity int) *Bus {
	return &Bus{ch: make(chan relay.Request, capacity)}
}

// Publish pushes a request or returns if the context ends.
func (b *Bus) Publish(ctx context.Context, _ string, req relay.Request) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- req:
		return nil
	}
}

// Subscribe returns the request stream.
func (b *Bus) Subscribe(_ context.Context, _ string) (<-chan relay.Request, error) {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil, errors.New("bus closed")
	}
	return b.ch, nil
}

// Close closes the underlying channel for shutdown.
func (b *Bus) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	close(b.ch)
	b.closed = true
	return nil
}
