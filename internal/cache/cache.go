// Package cache stores classifier responses keyed by the content they were
// computed from.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store abstracts the byte cache used for classifier responses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	value   []byte
	expires time.Time
}

// InMemoryStore for tests and single-instance deployments.
type InMemoryStore struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]entry), now: time.Now}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value; ttl <= 0 keeps it until the process exits.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.items[key] = e
	return nil
}

// Len reports the number of entries, including expired ones not yet evicted.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
