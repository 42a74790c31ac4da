// Package throttle is an expiring key-value gate: one action per key per ttl.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store admits the first action for a key and rejects the rest until ttl passes.
type Store interface {
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisStore shares the gate across instances through SET NX PX.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.keyPrefix+key, 1, ttl).Result()
}

// MemoryStore keeps the gate in process. It is used when redis is disabled.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
	calls   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expires[key]; ok && now.Before(until) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)

	s.calls++
	if s.calls%1024 == 0 {
		s.sweep(now)
	}
	return true, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, until := range s.expires {
		if !now.Before(until) {
			delete(s.expires, k)
		}
	}
}

// Noop allows everything. Useful where throttling is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string, time.Duration) (bool, error) { return true, nil }
