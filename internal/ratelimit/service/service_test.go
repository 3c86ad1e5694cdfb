package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/ratelimit/models"
	"onboard/internal/ratelimit/store"
	"onboard/pkg/platform/circuit"
)

type flakyStore struct {
	failing atomic.Bool
	inner   *store.InMemoryStore
}

func (f *flakyStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	if f.failing.Load() {
		return 0, time.Time{}, errors.New("connection refused")
	}
	return f.inner.Increment(ctx, key, window)
}

type RateLimitServiceSuite struct {
	suite.Suite
	ctx     context.Context
	primary *flakyStore
	breaker *circuit.Breaker
	service *Service
}

func TestRateLimitServiceSuite(t *testing.T) {
	suite.Run(t, new(RateLimitServiceSuite))
}

func (s *RateLimitServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.primary = &flakyStore{inner: store.NewInMemoryStore()}
	s.breaker = circuit.New("ratelimit", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	svc, err := New(s.primary, models.Limit{Requests: 5, Window: time.Minute},
		WithFallback(store.NewInMemoryStore(), s.breaker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *RateLimitServiceSuite) TestSixthRequestIsRejected() {
	for i := 1; i <= 5; i++ {
		result, err := s.service.Check(s.ctx, models.ClassVerification, "203.0.113.7")
		s.Require().NoError(err)
		s.True(result.Allowed, "request %d", i)
		s.Equal(5-i, result.Remaining)
	}
	result, err := s.service.Check(s.ctx, models.ClassVerification, "203.0.113.7")
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, 60)

	// separate class and separate client keep their own budgets
	result, err = s.service.Check(s.ctx, models.ClassPayment, "203.0.113.7")
	s.Require().NoError(err)
	s.True(result.Allowed)
	result, err = s.service.Check(s.ctx, models.ClassVerification, "198.51.100.1")
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RateLimitServiceSuite) TestUnknownClassIsUnlimited() {
	result, err := s.service.Check(s.ctx, models.EndpointClass("other"), "203.0.113.7")
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RateLimitServiceSuite) TestFallsBackWhilePrimaryFails() {
	s.primary.failing.Store(true)

	_, err := s.service.Check(s.ctx, models.ClassPayment, "203.0.113.7")
	s.Error(err, "first failure is below the threshold")

	result, err := s.service.Check(s.ctx, models.ClassPayment, "203.0.113.7")
	s.Require().NoError(err)
	s.True(result.Degraded)
	s.True(s.breaker.IsOpen())

	s.primary.failing.Store(false)
	result, err = s.service.Check(s.ctx, models.ClassPayment, "203.0.113.7")
	s.Require().NoError(err)
	s.True(result.Degraded, "served by the fallback while the breaker recovers")
	s.False(s.breaker.IsOpen())

	result, err = s.service.Check(s.ctx, models.ClassPayment, "203.0.113.7")
	s.Require().NoError(err)
	s.False(result.Degraded)
}

func (s *RateLimitServiceSuite) TestNewValidates() {
	_, err := New(nil, models.Limit{Requests: 1, Window: time.Second})
	s.Error(err)
	_, err = New(store.NewInMemoryStore(), models.Limit{})
	s.Error(err)
}
