//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/ratelimit/store/bucket"
	"onboard/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = bucket.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketStoreSuite) TestAllowCountsWithinWindow() {
	ctx := context.Background()
	const limit = 3

	for i := range limit {
		result, err := s.store.Allow(ctx, "ratelimit:onboard:ip:203.0.113.7", limit, time.Hour)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(limit-i-1, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "ratelimit:onboard:ip:203.0.113.7", limit, time.Hour)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)
}

func (s *RedisBucketStoreSuite) TestKeysAreIndependent() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "ratelimit:onboard:ip:a", 1, time.Hour)
	s.Require().NoError(err)

	result, err := s.store.Allow(ctx, "ratelimit:onboard:ip:b", 1, time.Hour)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestWindowKeyExpires() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "ratelimit:onboard:ip:ttl", 10, time.Hour)
	s.Require().NoError(err)

	keys, err := s.redis.Client.Keys(ctx, "ratelimit:onboard:ip:ttl:*").Result()
	s.Require().NoError(err)
	s.Require().Len(keys, 1)

	ttl, err := s.redis.Client.TTL(ctx, keys[0]).Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}
