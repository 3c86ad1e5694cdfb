package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map guarded by a RWMutex.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	byToken  map[string]id.SessionID
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[id.SessionID]*models.Session),
		byToken:  make(map[string]id.SessionID),
	}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, taken := s.byToken[session.ResumeToken]; taken {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = session.Clone()
	s.byToken[session.ResumeToken] = session.ID
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *InMemorySessionStore) FindByResumeToken(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.sessions[sessionID].Clone(), nil
}

func (s *InMemorySessionStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// List returns sessions newest first.
func (s *InMemorySessionStore) List(_ context.Context, filter ListFilter) ([]*models.Session, int, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, session.Status) {
			continue
		}
		if filter.AgentID != "" && session.PopAgentID != filter.AgentID {
			continue
		}
		matched = append(matched, session)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*models.Session{}, total, nil
	}
	end := min(filter.Offset+filter.Limit, total)
	page := make([]*models.Session, 0, end-filter.Offset)
	for _, session := range matched[filter.Offset:end] {
		page = append(page, session.Clone())
	}
	return page, total, nil
}

func (s *InMemorySessionStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, session := range s.sessions {
		counts[session.Status]++
	}
	return counts, nil
}

// CountByStatusForAgent counts the sessions attributed to agentID.
func (s *InMemorySessionStore) CountByStatusForAgent(_ context.Context, agentID string) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, session := range s.sessions {
		if session.PopAgentID == agentID {
			counts[session.Status]++
		}
	}
	return counts, nil
}

func (s *InMemorySessionStore) CountByVerificationMethod(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, session := range s.sessions {
		if session.VerificationMethod != "" {
			counts[session.VerificationMethod]++
		}
	}
	return counts, nil
}

func (s *InMemorySessionStore) CountByRiskLevel(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, session := range s.sessions {
		if session.RiskLevel != "" {
			counts[string(session.RiskLevel)]++
		}
	}
	return counts, nil
}

func (s *InMemorySessionStore) CompletionStats(_ context.Context) (CompletionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		stats CompletionStats
		total float64
	)
	for _, session := range s.sessions {
		if session.CompletedAt == nil {
			continue
		}
		stats.Completed++
		total += session.CompletedAt.Sub(session.CreatedAt).Seconds()
	}
	if stats.Completed > 0 {
		stats.AverageSeconds = total / float64(stats.Completed)
	}
	return stats, nil
}
