package checker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// memoryClient is an in-memory cache.Client for tests.
type memoryClient struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryClient() *memoryClient {
	return &memoryClient{data: map[string]string{}}
}

func (m *memoryClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *memoryClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}
