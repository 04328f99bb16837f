package store

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. It is the default backend for
// tests and for running without any configured database.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, profile, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[profile][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, profile, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[profile]
	if !ok {
		bucket = make(map[string]string)
		s.entries[profile] = bucket
	}
	bucket[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, profile, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[profile], key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
