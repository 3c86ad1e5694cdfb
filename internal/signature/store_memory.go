package signature

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"onboard/internal/onboarding/models"
	"onboard/pkg/platform/sentinel"
)

// InMemoryStore keeps pending references in a TTL cache. It is suitable for a
// single process only.
type InMemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewInMemoryStore(cleanupInterval time.Duration) *InMemoryStore {
	return &InMemoryStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *InMemoryStore) Put(_ context.Context, pending *models.PendingSignature) error {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	c := *pending
	s.cache.Set(pending.Reference, &c, ttl)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, reference string) (*models.PendingSignature, error) {
	v, ok := s.cache.Get(reference)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *v.(*models.PendingSignature)
	return &c, nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, pending *models.PendingSignature) (int, error) {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return 0, sentinel.ErrExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptsKeyPrefix + pending.Reference
	_ = s.cache.Add(key, 0, ttl) // fails once the counter exists
	return s.cache.IncrementInt(key, 1)
}

func (s *InMemoryStore) Consume(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(reference); !ok {
		return sentinel.ErrNotFound
	}
	s.cache.Delete(reference)
	s.cache.Delete(attemptsKeyPrefix + reference)
	return nil
}
