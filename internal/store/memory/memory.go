// Package memory is an in-process KV used for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/natusdeed/fashion-site-sub000/pkg/errors"
)

// Store keeps values in a map. Values are copied in and out.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	failErr error
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// FailWith makes every subsequent operation return err until called with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Get returns a copy of the value at key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, apperrors.NotFound("key", key)
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value at key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	delete(s.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ping always succeeds unless a failure is injected.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failErr
}
