//go:build integration

package signature_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/onboarding/models"
	"onboard/internal/signature"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *signature.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = signature.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	p := &models.PendingSignature{
		Reference: "ESIGN-ROUNDTRIP",
		SessionID: id.NewSessionID(),
		Method:    models.SignatureDSC,
		ProofHash: "$2a$10$abcdefghijklmnopqrstuv",
		ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.Put(ctx, p))

	ttl, err := s.redis.Client.TTL(ctx, "esign:pending:ESIGN-ROUNDTRIP").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)

	for i := 0; i < 2; i++ {
		got, err := s.store.Get(ctx, p.Reference)
		s.Require().NoError(err)
		s.Equal(p.SessionID, got.SessionID)
		s.Equal(p.Method, got.Method)
		s.Equal(p.ProofHash, got.ProofHash)
		s.True(p.ExpiresAt.Equal(got.ExpiresAt))
	}

	s.Require().NoError(s.store.Consume(ctx, p.Reference))
	_, err = s.store.Get(ctx, p.Reference)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *RedisStoreSuite) TestRecordFailureExpiresWithReference() {
	ctx := context.Background()
	p := &models.PendingSignature{
		Reference: "ESIGN-ATTEMPTS",
		SessionID: id.NewSessionID(),
		Method:    models.SignatureAadhaarOTP,
		ProofHash: "hash",
		ExpiresAt: time.Now().Add(time.Minute),
	}
	s.Require().NoError(s.store.Put(ctx, p))

	first, err := s.store.RecordFailure(ctx, p)
	s.Require().NoError(err)
	second, err := s.store.RecordFailure(ctx, p)
	s.Require().NoError(err)
	s.Equal(1, first)
	s.Equal(2, second)

	ttl, err := s.redis.Client.TTL(ctx, "esign:attempts:ESIGN-ATTEMPTS").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)

	s.Require().NoError(s.store.Consume(ctx, p.Reference))
	exists, err := s.redis.Client.Exists(ctx, "esign:attempts:ESIGN-ATTEMPTS").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

// TestConcurrentConsumeIsSingleUse verifies exactly one caller removes a
// reference.
//
// Justification: a replayed OTP must never complete a second signature.
func (s *RedisStoreSuite) TestConcurrentConsumeIsSingleUse() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, &models.PendingSignature{
		Reference: "ESIGN-RACE",
		SessionID: id.NewSessionID(),
		Method:    models.SignatureAadhaarOTP,
		ProofHash: "hash",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Consume(ctx, "ESIGN-RACE"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}
