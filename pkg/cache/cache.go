package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/mylogger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 100

// Cache is a best-effort key/value store. Failures of the backing store are
// logged and reported as a miss, false or zero, never as an error, so a
// broken cache degrades to reading from the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
	DeleteByPattern(ctx context.Context, pattern string) int64
	MGet(ctx context.Context, keys ...string) [][]byte
}

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) Cache {
	return &redisCache{
		client: client,
		logger: logger,
	}
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	})
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			mylogger.Warn(ctx, c.logger, "cache get failed", zap.String("key", key), zap.Error(err))
		}

		return nil, false
	}

	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		mylogger.Warn(ctx, c.logger, "cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		mylogger.Warn(ctx, c.logger, "cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return false
	}

	return true
}

func (c *redisCache) DeleteByPattern(ctx context.Context, pattern string) int64 {
	var (
		cursor  uint64
		deleted int64
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			mylogger.Warn(ctx, c.logger, "cache scan failed", zap.String("pattern", pattern), zap.Error(err))
			return deleted
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				mylogger.Warn(ctx, c.logger, "cache pattern delete failed", zap.String("pattern", pattern), zap.Error(err))
				return deleted
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	mylogger.Debug(ctx, c.logger, "cache invalidated", zap.String("pattern", pattern), zap.Int64("deleted", deleted))
	return deleted
}

func (c *redisCache) MGet(ctx context.Context, keys ...string) [][]byte {
	result := make([][]byte, len(keys))
	if len(keys) == 0 {
		return result
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		mylogger.Warn(ctx, c.logger, "cache mget failed", zap.Strings("keys", keys), zap.Error(err))
		return result
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			result[i] = []byte(s)
		}
	}

	return result
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// EscapePattern quotes the glob metacharacters of s so it matches itself
// literally inside a DeleteByPattern pattern.
func EscapePattern(s string) string {
	return patternEscaper.Replace(s)
}

// Key joins parts with ':' the way every service names its entries.
func Key(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}

	return strings.Join(strs, ":")
}
