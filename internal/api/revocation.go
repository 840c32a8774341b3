package api

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RevocationStore remembers logged-out token ids until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations is the single-instance store.
type MemoryRevocations struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{items: map[string]time.Time{}}
}

func (m *MemoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	m.items[jti] = until
	m.mu.Unlock()
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.items[jti]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}

// Prune drops entries whose token has expired and returns how many were removed.
func (m *MemoryRevocations) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for jti, until := range m.items {
		if !now.Before(until) {
			delete(m.items, jti)
			n++
		}
	}
	return n
}

// RedisRevocations shares revocations between instances; keys expire with the token.
type RedisRevocations struct {
	rc     *redis.Client
	prefix string
}

func NewRedisRevocations(rc *redis.Client) *RedisRevocations {
	return &RedisRevocations{rc: rc, prefix: "revoked:"}
}

func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.rc.Set(ctx, r.prefix+jti, "1", ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rc.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
