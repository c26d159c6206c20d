package locks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "webconferencing:lock:"

// MinRedisExpiry is the shortest expiry the renewal loop can keep alive.
const MinRedisExpiry = 3 * time.Second

// mutex is the part of *redsync.Mutex the locker uses.
type mutex interface {
	LockContext(ctx context.Context) error
	ExtendContext(ctx context.Context) (bool, error)
	UnlockContext(ctx context.Context) (bool, error)
}

// Redis serializes keys across processes sharing one Redis server.
// A held key is renewed every third of its expiry until released, so the
// expiry only bounds how long a crashed holder can block a key.
type Redis struct {
	newMutex func(name string) mutex
	expiry   time.Duration
	log      *slog.Logger
}

func NewRedis(client *redis.Client, expiry time.Duration, log *slog.Logger) *Redis {
	if expiry < MinRedisExpiry {
		expiry = MinRedisExpiry
	}
	rs := redsync.New(goredis.NewPool(client))
	return newRedis(func(name string) mutex {
		return rs.NewMutex(name,
			redsync.WithExpiry(expiry),
			redsync.WithTries(64),
			redsync.WithRetryDelay(25*time.Millisecond),
		)
	}, expiry, log)
}

func newRedis(newMutex func(string) mutex, expiry time.Duration, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{newMutex: newMutex, expiry: expiry, log: log}
}

func redisLockName(key string) string { return redisKeyPrefix + key }

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	m := r.newMutex(redisLockName(key))
	if err := m.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.renew(done, key, m)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			// Unlock must not depend on the caller's context, which may be done already.
			if _, err := m.UnlockContext(context.Background()); err != nil {
				r.log.Error("failed to unlock mutex", "key", key, "err", err)
			}
		})
	}, nil
}

func (r *Redis) renew(done <-chan struct{}, key string, m mutex) {
	t := time.NewTicker(r.expiry / 3)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.expiry/3)
			ok, err := m.ExtendContext(ctx)
			cancel()
			if err != nil || !ok {
				r.log.Warn("failed to extend mutex", "key", key, "err", err)
			}
		}
	}
}
