// Package store keeps fixed-window request counters.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	count   int
	resetAt time.Time
}

// InMemoryStore counts requests per key in process memory. Windows expire
// with the cache item.
type InMemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cache: cache.New(cache.NoExpiration, time.Minute)}
}

// Increment adds one to key's current window, starting a new window when
// none is open.
func (s *InMemoryStore) Increment(_ context.Context, key string, windowSize time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.cache.Get(key)
	if !ok || !now.Before(w.(*window).resetAt) {
		fresh := &window{count: 1, resetAt: now.Add(windowSize)}
		s.cache.Set(key, fresh, windowSize)
		return 1, fresh.resetAt, nil
	}
	current := w.(*window)
	current.count++
	return current.count, current.resetAt, nil
}
