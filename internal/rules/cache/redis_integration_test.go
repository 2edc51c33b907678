//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lendgate/internal/domain"
	platformredis "lendgate/internal/platform/redis"
	"lendgate/internal/rules/cache"
	"lendgate/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	client := &platformredis.Client{Client: s.redis.Client}
	s.cache = cache.NewRedisCache(client, 5*time.Minute, nil)
}

func (s *RedisCacheSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func cachedVersion(ruleSet string) domain.RuleVersion {
	return domain.RuleVersion{
		ID:      uuid.NewString(),
		RuleSet: ruleSet,
		Version: "2024.1",
		Rules: []domain.Rule{{
			ID: "LTV_MAX",
			Condition: domain.RuleCondition{
				Type:     domain.ConditionSimple,
				Field:    "loan.ltv",
				Operator: domain.OpLte,
				Value:    80,
			},
			Severity: domain.SeverityBlocking,
			Active:   true,
		}},
		EffectiveFrom: time.Now().UTC().Truncate(time.Second),
		Active:        true,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	version := cachedVersion("ltv-standard")

	s.cache.Set(ctx, version)

	got := s.cache.Get(ctx, "ltv-standard")
	s.Require().NotNil(got)
	s.Equal(version.ID, got.ID)
	s.Require().Len(got.Rules, 1)
	s.Equal("LTV_MAX", got.Rules[0].ID)
}

func (s *RedisCacheSuite) TestMissReturnsNil() {
	got := s.cache.Get(context.Background(), "never-published")
	s.Nil(got)
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	version := cachedVersion("ltv-standard")

	s.cache.Set(ctx, version)
	s.cache.Invalidate(ctx, "ltv-standard")

	s.Nil(s.cache.Get(ctx, "ltv-standard"))
}

func (s *RedisCacheSuite) TestCorruptEntryDegradesToMiss() {
	ctx := context.Background()

	err := s.redis.Client.Set(ctx, "lendgate:rules:active:ltv-standard", "not json", 0).Err()
	s.Require().NoError(err)

	s.Nil(s.cache.Get(ctx, "ltv-standard"))
}
