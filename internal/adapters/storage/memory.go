// Package storage provides ports.KeyValueStore backends: a process-local
// in-memory map and a durable SQLite table.
package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/jsamuelsen/quotesync/internal/domain"
)

// MemoryStore is an in-memory ports.KeyValueStore. Contents are lost on exit.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
	}
}

// Get returns the value for key or domain.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", domain.NewNotFoundError("key", key)
	}

	return v, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value

	return nil
}

// SetMany writes all entries under one lock, so readers never observe a
// partial batch.
func (s *MemoryStore) SetMany(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.data, entries)

	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Name implements ports.HealthChecker.
func (s *MemoryStore) Name() string {
	return "kvstore"
}

// Check implements ports.HealthChecker. The in-memory store is always ready.
func (s *MemoryStore) Check(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op so MemoryStore and SQLiteStore share a lifecycle.
func (s *MemoryStore) Close() error {
	return nil
}
