package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

type RedisCacheSuite struct {
	suite.Suite

	ctx       context.Context
	container *tcredis.RedisContainer
	client    *redis.Client
	cache     Cache
}

func (s *RedisCacheSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)

	connStr, err := s.container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(connStr)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.cache = NewRedisCache(s.client, zap.NewNop())
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(s.ctx).Err())
}

func (s *RedisCacheSuite) TestSetGetDelete() {
	s.Require().True(s.cache.Set(s.ctx, "order:1", []byte(`{"id":"1"}`), time.Minute))

	val, ok := s.cache.Get(s.ctx, "order:1")
	s.Require().True(ok)
	s.Require().JSONEq(`{"id":"1"}`, string(val))

	s.Require().True(s.cache.Delete(s.ctx, "order:1"))

	_, ok = s.cache.Get(s.ctx, "order:1")
	s.Require().False(ok)
}

func (s *RedisCacheSuite) TestExpiry() {
	s.Require().True(s.cache.Set(s.ctx, "order:2", []byte("x"), 50*time.Millisecond))

	s.Require().Eventually(func() bool {
		_, ok := s.cache.Get(s.ctx, "order:2")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *RedisCacheSuite) TestDeleteByPatternRemovesOnlyMatches() {
	for i := 0; i < 250; i++ {
		s.Require().True(s.cache.Set(s.ctx, fmt.Sprintf("orders:user:u1:status:all:page:%d:limit:10", i), []byte("1"), time.Minute))
	}
	s.Require().True(s.cache.Set(s.ctx, "orders:user:u2:status:all:page:1:limit:10", []byte("1"), time.Minute))
	s.Require().True(s.cache.Set(s.ctx, "order:42", []byte("1"), time.Minute))

	deleted := s.cache.DeleteByPattern(s.ctx, "orders:user:u1:*")
	s.Require().EqualValues(250, deleted)

	_, ok := s.cache.Get(s.ctx, "orders:user:u2:status:all:page:1:limit:10")
	s.Require().True(ok)
	_, ok = s.cache.Get(s.ctx, "order:42")
	s.Require().True(ok)
}

func (s *RedisCacheSuite) TestDeleteByPatternEscapedSegment() {
	s.Require().True(s.cache.Set(s.ctx, "orders:user:*:page:1", []byte("1"), time.Minute))
	s.Require().True(s.cache.Set(s.ctx, "orders:user:u2:page:1", []byte("1"), time.Minute))

	deleted := s.cache.DeleteByPattern(s.ctx, Key("orders", "user", EscapePattern("*"), "*"))
	s.Require().EqualValues(1, deleted)

	_, ok := s.cache.Get(s.ctx, "orders:user:u2:page:1")
	s.Require().True(ok)
	_, ok = s.cache.Get(s.ctx, "orders:user:*:page:1")
	s.Require().False(ok)
}

func (s *RedisCacheSuite) TestMGet() {
	s.Require().True(s.cache.Set(s.ctx, "product:a", []byte("A"), time.Minute))
	s.Require().True(s.cache.Set(s.ctx, "product:c", []byte("C"), time.Minute))

	vals := s.cache.MGet(s.ctx, "product:a", "product:b", "product:c")
	s.Require().Len(vals, 3)
	s.Require().Equal([]byte("A"), vals[0])
	s.Require().Nil(vals[1])
	s.Require().Equal([]byte("C"), vals[2])
}

func (s *RedisCacheSuite) TestAsideLoadsOnceUntilInvalidated() {
	type order struct {
		ID    string `json:"id"`
		Total string `json:"total"`
	}

	calls := 0
	load := func(context.Context) (order, error) {
		calls++
		return order{ID: "o1", Total: "20.00"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Aside(s.ctx, s.cache, "order:o1", time.Minute, load)
		s.Require().NoError(err)
		s.Require().Equal("20.00", got.Total)
	}
	s.Require().Equal(1, calls)

	Invalidate(s.ctx, s.cache, []string{"order:o1"})

	_, err := Aside(s.ctx, s.cache, "order:o1", time.Minute, load)
	s.Require().NoError(err)
	s.Require().Equal(2, calls)
}

func (s *RedisCacheSuite) TestAsideDoesNotCacheErrors() {
	boom := errors.New("store down")
	_, err := Aside(s.ctx, s.cache, "order:bad", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	s.Require().ErrorIs(err, boom)

	_, ok := s.cache.Get(s.ctx, "order:bad")
	s.Require().False(ok)
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func TestUnreachableRedisDegradesToMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewRedisCache(client, zap.NewNop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "order:1")
	assert.False(t, ok)
	assert.False(t, c.Set(ctx, "order:1", []byte("x"), time.Minute))
	assert.False(t, c.Delete(ctx, "order:1"))
	assert.Zero(t, c.DeleteByPattern(ctx, "orders:*"))
	assert.Equal(t, [][]byte{nil, nil}, c.MGet(ctx, "a", "b"))

	got, err := Aside(ctx, c, "order:1", time.Minute, func(context.Context) (string, error) {
		return "from-store", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-store", got)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "orders:user:u1:status:all:page:2:limit:10", Key("orders", "user", "u1", "status", "all", "page", 2, "limit", 10))
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, "u1", EscapePattern("u1"))
	assert.Equal(t, `\*\?\[a\]\\`, EscapePattern(`*?[a]\`))
}
