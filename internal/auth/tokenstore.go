package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokens stores session tokens in Redis with a TTL, so sessions survive
// service restarts and expire on their own.
type RedisTokens struct {
	rdb *redis.Client
}

func NewRedisTokens(rdb *redis.Client) *RedisTokens {
	return &RedisTokens{rdb: rdb}
}

func (r *RedisTokens) Set(ctx context.Context, token, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, "session:"+token, value, ttl).Err()
}

func (r *RedisTokens) Get(ctx context.Context, token string) (string, error) {
	value, err := r.rdb.Get(ctx, "session:"+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenMissing
	}
	return value, err
}

func (r *RedisTokens) Del(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, "session:"+token).Err()
}

// MemoryTokens backs dev runs and tests.
type MemoryTokens struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	value   string
	expires time.Time
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]memoryToken)}
}

func (m *MemoryTokens) Set(ctx context.Context, token, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memoryToken{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryTokens) Get(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.tokens[token]
	if !ok || time.Now().After(entry.expires) {
		delete(m.tokens, token)
		return "", ErrTokenMissing
	}
	return entry.value, nil
}

func (m *MemoryTokens) Del(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}
