package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// InMemoryVerificationStore keeps verification records in insertion order.
type InMemoryVerificationStore struct {
	mu      sync.RWMutex
	records []*models.VerificationRecord
}

func NewInMemoryVerificationStore() *InMemoryVerificationStore {
	return &InMemoryVerificationStore{}
}

func (s *InMemoryVerificationStore) Create(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *record
	c.Fields = maps.Clone(record.Fields)
	s.records = append(s.records, &c)
	return nil
}

// CountByTaxID counts records carrying taxID created at or after since.
// A zero since counts every record.
func (s *InMemoryVerificationStore) CountByTaxID(_ context.Context, taxID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.TaxID == taxID && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryVerificationStore) LatestBySession(_ context.Context, sessionID id.SessionID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].SessionID == sessionID {
			c := *s.records[i]
			c.Fields = maps.Clone(s.records[i].Fields)
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// InMemoryPaymentStore keeps payments keyed by id.
type InMemoryPaymentStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{payments: make(map[id.PaymentID]*models.Payment)}
}

func (s *InMemoryPaymentStore) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; exists {
		return sentinel.ErrConflict
	}
	c := *payment
	s.payments[payment.ID] = &c
	return nil
}

func (s *InMemoryPaymentStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *InMemoryPaymentStore) Save(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; !ok {
		return sentinel.ErrNotFound
	}
	c := *payment
	s.payments[payment.ID] = &c
	return nil
}

// InMemoryConsentStore keeps archived consent artifacts per session.
type InMemoryConsentStore struct {
	mu        sync.RWMutex
	artifacts map[id.SessionID][]*models.ConsentArtifact
}

func NewInMemoryConsentStore() *InMemoryConsentStore {
	return &InMemoryConsentStore{artifacts: make(map[id.SessionID][]*models.ConsentArtifact)}
}

func (s *InMemoryConsentStore) Create(_ context.Context, artifact *models.ConsentArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *artifact
	c.Metadata = maps.Clone(artifact.Metadata)
	s.artifacts[artifact.SessionID] = append(s.artifacts[artifact.SessionID], &c)
	return nil
}

func (s *InMemoryConsentStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]*models.ConsentArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ConsentArtifact, 0, len(s.artifacts[sessionID]))
	for _, a := range s.artifacts[sessionID] {
		c := *a
		c.Metadata = maps.Clone(a.Metadata)
		out = append(out, &c)
	}
	return out, nil
}
