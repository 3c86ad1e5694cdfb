package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"onboard/internal/audit"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// InMemoryStore keeps chains in process memory. A single mutex makes every
// read-latest-then-insert atomic.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.SessionID][]*audit.Entry
	frozen  map[id.SessionID]audit.Freeze
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[id.SessionID][]*audit.Entry),
		frozen:  make(map[id.SessionID]audit.Freeze),
	}
}

func (s *InMemoryStore) AppendNext(_ context.Context, sessionID id.SessionID, build func(last *audit.Entry) (*audit.Entry, error)) (*audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, frozen := s.frozen[sessionID]; frozen {
		return nil, sentinel.ErrFrozen
	}

	var last *audit.Entry
	if chain := s.entries[sessionID]; len(chain) > 0 {
		last = copyEntry(chain[len(chain)-1])
	}
	entry, err := build(last)
	if err != nil {
		return nil, err
	}
	s.entries[sessionID] = append(s.entries[sessionID], copyEntry(entry))
	return entry, nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.entries[sessionID]
	out := make([]*audit.Entry, 0, len(chain))
	for _, e := range chain {
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func (s *InMemoryStore) Freeze(_ context.Context, freeze audit.Freeze) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frozen[freeze.SessionID]; !ok {
		s.frozen[freeze.SessionID] = freeze
	}
	return nil
}

func (s *InMemoryStore) ListFrozen(_ context.Context) ([]audit.Freeze, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Freeze, 0, len(s.frozen))
	for _, f := range s.frozen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FrozenAt.Before(out[j].FrozenAt) })
	return out, nil
}

// Tamper rewrites a stored entry in place. It exists for tests that simulate
// retroactive modification of the trail.
func (s *InMemoryStore) Tamper(sessionID id.SessionID, sequence int64, mutate func(e *audit.Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries[sessionID] {
		if e.Sequence == sequence {
			mutate(e)
			return true
		}
	}
	return false
}

func copyEntry(e *audit.Entry) *audit.Entry {
	c := *e
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}
