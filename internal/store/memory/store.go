// Package memory provides a metadata store for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mediarelay/mediarelay/internal/relay"
)

type record struct {
	value   string
	expires time.Time
}

// Store is a map-backed relay.MetadataStore honoring TTL against an
// injected clock.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   relay.Clock
	records map[string]record
}

// New builds an empty store. A zero ttl falls back to the default.
func New(ttl time.Duration, clock relay.Clock) *Store {
	if ttl <= 0 {
		ttl = relay.DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		clock:   clock,
		records: make(map[string]record),
	}
}

// Get returns the value for key or relay.ErrKeyNotFound once expired.
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return "", relay.ErrKeyNotFound
	}
	if !rec.expires.IsZero() && !s.clock.Now().Before(rec.expires) {
		delete(s.records, key)
		return "", relay.ErrKeyNotFound
	}
	return rec.value, nil
}

// Set stores the value with the configured TTL.
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record{value: value, expires: s.clock.Now().Add(s.ttl)}
	return nil
}

// Delete removes the key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Scan returns all live entries with their remaining TTL.
func (s *Store) Scan(_ context.Context) ([]relay.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	entries := make([]relay.Entry, 0, len(s.records))
	for key, rec := range s.records {
		if !rec.expires.IsZero() && !now.Before(rec.expires) {
			continue
		}
		entry := relay.Entry{Key: key, Value: rec.value}
		if !rec.expires.IsZero() {
			remaining := rec.expires.Sub(now)
			entry.TTL = &remaining
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
