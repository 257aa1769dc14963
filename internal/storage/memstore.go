package storage

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store with the same write-once contract as
// the Supabase gateway. Used by tests and local development.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (s *MemStore) Put(_ context.Context, path string, data []byte, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[path]; exists && !overwrite {
		return ErrAlreadyExists
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	return nil
}

func (s *MemStore) Get(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, exists := s.objects[path]
	if !exists {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
