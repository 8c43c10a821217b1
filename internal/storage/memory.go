package storage

import (
	"context"
	"sync"
)

type memoryKV struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryKV crea un backend en memoria; no sobrevive al proceso.
func NewMemoryKV() KV {
	return &memoryKV{
		items: make(map[string]string),
	}
}

func (s *memoryKV) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *memoryKV) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *memoryKV) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
