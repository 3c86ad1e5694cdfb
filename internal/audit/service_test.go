package audit_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/audit"
	"onboard/internal/audit/store"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/hashing"
	"onboard/pkg/requestcontext"
)

type ChainServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	service *audit.Service
}

func TestChainServiceSuite(t *testing.T) {
	suite.Run(t, new(ChainServiceSuite))
}

func (s *ChainServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "curl/8.4.0")
	s.ctx = requestcontext.WithTime(s.ctx, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	s.store = store.NewInMemoryStore()
	svc, err := audit.New(s.store, audit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ChainServiceSuite) appendN(sessionID id.SessionID, n int) []*audit.Entry {
	entries := make([]*audit.Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, map[string]any{"step": i}, nil)
		s.Require().NoError(err)
		entries = append(entries, e)
	}
	return entries
}

// =============================================================================
// Append
// =============================================================================

func (s *ChainServiceSuite) TestAppend_LinksEntries() {
	sessionID := id.NewSessionID()
	first, err := s.service.Append(s.ctx, sessionID, audit.ActionSessionStart, map[string]any{"account_type": "citizen"}, nil)
	s.Require().NoError(err)
	second, err := s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, map[string]any{"age": 30}, map[string]any{"risk_level": "Standard"})
	s.Require().NoError(err)

	s.Equal(int64(1), first.Sequence)
	s.Equal(hashing.Empty, first.PreviousHash)
	s.Equal(hashing.ContentHash(map[string]any{"account_type": "citizen"}), first.PayloadHash)
	s.Equal(hashing.ChainHash(map[string]any{"account_type": "citizen"}, hashing.Empty), first.ChainHash)

	s.Equal(int64(2), second.Sequence)
	s.Equal(first.ChainHash, second.PreviousHash)
	s.Equal("203.0.113.7", second.IPAddress)
	s.Equal("curl/8.4.0", second.UserAgent)
	s.Equal("Standard", second.Metadata["risk_level"])
	s.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), second.Timestamp)
}

func (s *ChainServiceSuite) TestAppend_IdenticalPayloadsShareContentHashOnly() {
	sessionID := id.NewSessionID()
	payload := map[string]any{"pep": "no", "age": 30}
	first, err := s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, payload, nil)
	s.Require().NoError(err)
	second, err := s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, payload, nil)
	s.Require().NoError(err)

	s.Equal(first.PayloadHash, second.PayloadHash)
	s.NotEqual(first.ChainHash, second.ChainHash)
}

func (s *ChainServiceSuite) TestAppend_RejectsUnknownAction() {
	_, err := s.service.Append(s.ctx, id.NewSessionID(), audit.Action("SESSION_DELETED"), nil, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ChainServiceSuite) TestAppend_AgentNamespace() {
	action, ok := audit.AgentAction("HANDOFF")
	s.Require().True(ok)
	s.Equal(audit.Action("AGENT_HANDOFF"), action)

	_, err := s.service.Append(s.ctx, id.NewSessionID(), action, map[string]any{"agent_id": "A-17"}, nil)
	s.NoError(err)

	_, ok = audit.AgentAction("handoff")
	s.False(ok)
}

// TestAppend_ConcurrentWritersNeverFork verifies per-session atomicity of
// read-latest-then-insert.
//
// Justification: two interleaved appends computing the same previous hash
// would fork the chain and defeat tamper evidence.
func (s *ChainServiceSuite) TestAppend_ConcurrentWritersNeverFork() {
	sessionID := id.NewSessionID()
	const writers = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, map[string]any{"writer": i}, nil)
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	result, err := s.service.VerifyChain(s.ctx, sessionID)
	s.Require().NoError(err)
	s.True(result.Valid, result.Message)
	s.Equal(writers, result.TotalEntries)
}

// =============================================================================
// Trail and VerifyChain
// =============================================================================

func (s *ChainServiceSuite) TestTrail_EmptyForUnknownSession() {
	entries, err := s.service.Trail(s.ctx, id.NewSessionID())
	s.Require().NoError(err)
	s.NotNil(entries)
	s.Empty(entries)

	result, err := s.service.VerifyChain(s.ctx, id.NewSessionID())
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Zero(result.TotalEntries)
	s.Nil(result.BrokenAt)
}

func (s *ChainServiceSuite) TestVerifyChain_ReportsFirstBrokenEntry() {
	tests := []struct {
		name   string
		target int64
		mutate func(e *audit.Entry)
	}{
		{"previous hash rewritten", 3, func(e *audit.Entry) { e.PreviousHash = hashing.Sum([]byte("forged")) }},
		{"chain hash rewritten", 2, func(e *audit.Entry) { e.ChainHash = hashing.Sum([]byte("forged")) }},
		{"payload hash rewritten", 4, func(e *audit.Entry) { e.PayloadHash = hashing.Sum([]byte("forged")) }},
		{"first entry previous hash set", 1, func(e *audit.Entry) { e.PreviousHash = hashing.Sum([]byte("x")) }},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			sessionID := id.NewSessionID()
			s.appendN(sessionID, 5)
			s.Require().True(s.store.Tamper(sessionID, tt.target, tt.mutate))

			result, err := s.service.VerifyChain(s.ctx, sessionID)
			s.Require().NoError(err)
			s.False(result.Valid)
			s.Equal(5, result.TotalEntries)
			s.Require().NotNil(result.BrokenAt)
			s.Equal(tt.target, result.BrokenAt.Sequence)
		})
	}
}

func (s *ChainServiceSuite) TestVerifyChain_DetectsSequenceGap() {
	sessionID := id.NewSessionID()
	s.appendN(sessionID, 3)
	s.store.Tamper(sessionID, 2, func(e *audit.Entry) { e.Sequence = 7 })

	result, err := s.service.VerifyChain(s.ctx, sessionID)
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(int64(7), result.BrokenAt.Sequence)
	s.Contains(result.BrokenAt.Reason, "sequence gap")
}

func (s *ChainServiceSuite) TestVerifyChain_BreakFreezesSession() {
	sessionID := id.NewSessionID()
	s.appendN(sessionID, 2)
	s.store.Tamper(sessionID, 1, func(e *audit.Entry) { e.ChainHash = "0" })

	result, err := s.service.VerifyChain(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Require().False(result.Valid)

	_, err = s.service.Append(s.ctx, sessionID, audit.ActionProfileUpdate, map[string]any{}, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIntegrityFailure))

	frozen, err := s.service.Frozen(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(frozen, 1)
	s.Equal(sessionID, frozen[0].SessionID)
	s.Equal(int64(1), frozen[0].Sequence)

	s.Run("other sessions are unaffected", func() {
		_, err := s.service.Append(s.ctx, id.NewSessionID(), audit.ActionSessionStart, nil, nil)
		s.NoError(err)
	})
}

func (s *ChainServiceSuite) TestVerifyChain_ValidAcrossManyAppends() {
	for n := 1; n <= 20; n += 7 {
		s.Run(fmt.Sprintf("%d entries", n), func() {
			sessionID := id.NewSessionID()
			s.appendN(sessionID, n)
			result, err := s.service.VerifyChain(s.ctx, sessionID)
			s.Require().NoError(err)
			s.True(result.Valid)
			s.Equal(n, result.TotalEntries)
		})
	}
}
