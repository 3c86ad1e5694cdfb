//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"onboard/internal/ratelimit/store"
	"onboard/pkg/testutil/containers"
)

type RedisCounterSuite struct {
	suite.Suite
	client *redis.Client
	store  *store.RedisStore
}

func TestRedisCounterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCounterSuite))
}

func (s *RedisCounterSuite) SetupSuite() {
	container := containers.GetManager().GetRedis(s.T())
	s.client = container.Client
	s.store = store.NewRedisStore(s.client)
}

func (s *RedisCounterSuite) SetupTest() {
	s.Require().NoError(s.client.FlushDB(context.Background()).Err())
}

func (s *RedisCounterSuite) TestIncrementSharesWindow() {
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		count, resetAt, err := s.store.Increment(ctx, "ratelimit:kyc_verify:203.0.113.7", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, count)
		s.WithinDuration(time.Now().Add(time.Minute), resetAt, 2*time.Second)
	}

	ttl, err := s.client.PTTL(ctx, "ratelimit:kyc_verify:203.0.113.7").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisCounterSuite) TestWindowExpires() {
	ctx := context.Background()
	_, _, err := s.store.Increment(ctx, "ratelimit:payment_initiate:198.51.100.2", 200*time.Millisecond)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		count, _, err := s.store.Increment(ctx, "ratelimit:payment_initiate:198.51.100.2", 200*time.Millisecond)
		return err == nil && count == 1
	}, 3*time.Second, 250*time.Millisecond)
}
