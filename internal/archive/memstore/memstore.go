// Package memstore provides an in-memory archive store for tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/discochess/hindsight/internal/archive"
)

// Compile-time check that Store implements archive.Store.
var _ archive.Store = (*Store)(nil)

// Store is an in-memory archive store.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	writes  int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Read returns a copy of the object under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, archive.ErrNotFound
	}
	return slices.Clone(data), nil
}

// Write stores a copy of data.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = slices.Clone(data)
	s.writes++
	return nil
}

// List returns the keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(s.objects)) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Writes returns the number of Write calls so far.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
