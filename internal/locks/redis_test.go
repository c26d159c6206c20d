package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeMutex struct {
	name    string
	lockErr error

	mu        sync.Mutex
	extends   int
	unlocks   int
	unlockCtx error
}

func (m *fakeMutex) LockContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.lockErr
}

func (m *fakeMutex) ExtendContext(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extends++
	return true, nil
}

func (m *fakeMutex) UnlockContext(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks++
	m.unlockCtx = ctx.Err()
	return true, nil
}

func (m *fakeMutex) counts() (extends, unlocks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extends, m.unlocks
}

func newFakeRedis(expiry time.Duration, m *fakeMutex) *Redis {
	return newRedis(func(name string) mutex {
		m.name = name
		return m
	}, expiry, nil)
}

func TestRedis_PrefixesKeys(t *testing.T) {
	m := &fakeMutex{}
	r := newFakeRedis(time.Minute, m)

	unlock, err := r.Lock(context.Background(), "call:c1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()

	if m.name != "webconferencing:lock:call:c1" {
		t.Fatalf("unexpected mutex name %q", m.name)
	}
}

func TestRedis_UnlockSurvivesCancelledContext(t *testing.T) {
	m := &fakeMutex{}
	r := newFakeRedis(time.Minute, m)

	ctx, cancel := context.WithCancel(context.Background())
	unlock, err := r.Lock(ctx, "call:c1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	cancel()
	unlock()
	unlock()

	if _, unlocks := m.counts(); unlocks != 1 {
		t.Fatalf("expected one unlock, got %d", unlocks)
	}
	if m.unlockCtx != nil {
		t.Fatalf("unlock ran with a done context: %v", m.unlockCtx)
	}
}

func TestRedis_ExtendsWhileHeld(t *testing.T) {
	m := &fakeMutex{}
	r := newFakeRedis(30*time.Millisecond, m)

	unlock, err := r.Lock(context.Background(), "call:c1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	unlock()

	extends, _ := m.counts()
	if extends == 0 {
		t.Fatalf("expected the mutex extended while held")
	}
	time.Sleep(50 * time.Millisecond)
	if after, _ := m.counts(); after != extends {
		t.Fatalf("extended after unlock: %d -> %d", extends, after)
	}
}

func TestRedis_LockErrors(t *testing.T) {
	r := newFakeRedis(time.Minute, &fakeMutex{lockErr: errors.New("taken")})
	if _, err := r.Lock(context.Background(), "call:c1"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newFakeRedis(time.Minute, &fakeMutex{}).Lock(ctx, "call:c1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestNewRedis_RaisesShortExpiry(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	if r := NewRedis(client, time.Second, nil); r.expiry != MinRedisExpiry {
		t.Fatalf("expected expiry raised to %v, got %v", MinRedisExpiry, r.expiry)
	}
}
