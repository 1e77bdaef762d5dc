package cachetest

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/dax-side/ecommerce-microservices-api/pkg/cache"
)

// Memory is an in-process cache.Cache for tests. Patterns use path.Match,
// which agrees with Redis MATCH for '*' globs and backslash escapes.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

var _ cache.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries[key]
	return v, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	m.ttls[key] = ttl
	return true
}

func (m *Memory) Delete(_ context.Context, keys ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
		delete(m.ttls, k)
	}
	return true
}

func (m *Memory) DeleteByPattern(_ context.Context, pattern string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k := range m.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.entries, k)
			delete(m.ttls, k)
			n++
		}
	}
	return n
}

func (m *Memory) MGet(_ context.Context, keys ...string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.entries[k]
	}
	return out
}

func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	return ok
}

// TTL returns the ttl key was last stored with.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ttls[key]
}
