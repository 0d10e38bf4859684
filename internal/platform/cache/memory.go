package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemory is the redis-less backend used for local development and
// tests. Expiry is checked lazily on read.
func NewMemory() Store {
	return &memoryStore{data: map[string]memEntry{}, now: time.Now}
}

// NewMemoryWithClock allows tests to control expiry.
func NewMemoryWithClock(now func() time.Time) Store {
	return &memoryStore{data: map[string]memEntry{}, now: now}
}

func (s *memoryStore) get(key string) (string, bool) {
	e, ok := s.data[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.data, key)
		return "", false
	}
	return e.value, true
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key)
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memoryStore) GetDelete(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(key)
	if !ok {
		return "", apperr.ErrNotFound
	}
	delete(s.data, key)
	return v, nil
}

func (s *memoryStore) Close() error { return nil }
