package cache

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EntityTTL     = 10 * time.Minute
	UserListTTL   = 5 * time.Minute
	ListTTL       = 5 * time.Minute
	GlobalListTTL = time.Minute
)

// Aside returns the cached value for key or calls load, stores its JSON
// encoding under key and returns it. Load errors are returned unchanged and
// nothing is stored for them.
func Aside[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if raw, ok := c.Get(ctx, key); ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	val, err := load(ctx)
	if err != nil {
		return val, err
	}

	if data, err := json.Marshal(val); err == nil {
		c.Set(ctx, key, data, ttl)
	}

	return val, nil
}

// Invalidate drops exact keys and every key matching the given patterns.
func Invalidate(ctx context.Context, c Cache, keys []string, patterns ...string) {
	c.Delete(ctx, keys...)
	for _, p := range patterns {
		c.DeleteByPattern(ctx, p)
	}
}
