package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ConfigStore keeps provider settings as opaque JSON values.
type ConfigStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

type MemoryConfigStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{values: make(map[string][]byte)}
}

func (s *MemoryConfigStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryConfigStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// RedisHash is the hash shared by every API process.
const RedisHash = "webconferencing:providers"

// RedisConfigStore keeps settings in one Redis hash so all processes see the
// same provider state.
type RedisConfigStore struct {
	rdb  *redis.Client
	hash string
}

func NewRedisConfigStore(rdb *redis.Client) *RedisConfigStore {
	return &RedisConfigStore{rdb: rdb, hash: RedisHash}
}

func (s *RedisConfigStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading provider setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisConfigStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("saving provider setting %s: %w", key, err)
	}
	return nil
}
