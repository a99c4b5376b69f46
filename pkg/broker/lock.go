package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when a lock cannot be obtained.
var ErrLockNotAcquired = errors.New("lock not acquired")

// DistributedLock provides mutual exclusion across gateway/worker/cleanup
// processes sharing the same broker, using SET NX plus a Lua-scripted
// compare-and-delete release so a lock can only be released by its holder.
type DistributedLock struct {
	client    *redis.Client
	keyPrefix string
}

// Lock represents a held lock.
type Lock struct {
	dl       *DistributedLock
	key      string
	value    string
	released bool
}

// NewDistributedLock creates a distributed lock manager over client.
func NewDistributedLock(client *redis.Client) *DistributedLock {
	return &DistributedLock{client: client, keyPrefix: "ifcjobs:lock:"}
}

// Acquire attempts to acquire a lock, failing immediately if already held.
func (dl *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lockKey := dl.keyPrefix + key
	value := fmt.Sprintf("%d", time.Now().UnixNano())

	ok, err := dl.client.SetNX(ctx, lockKey, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &Lock{dl: dl, key: lockKey, value: value}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until
// maxWait elapses. Used by the cleanup sweep so a second replica waiting
// behind the lock doesn't hammer the broker.
func (dl *DistributedLock) TryAcquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*Lock, error) {
	deadline := time.Now().Add(maxWait)
	backoff := 10 * time.Millisecond

	for time.Now().Before(deadline) {
		lock, err := dl.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}

	return nil, ErrLockNotAcquired
}

// Release releases the lock, a no-op if it is no longer held by us.
func (l *Lock) Release(ctx context.Context) error {
	if l.released {
		return nil
	}

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if _, err := script.Run(ctx, l.dl.client, []string{l.key}, l.value).Result(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}

	l.released = true
	return nil
}

// WithLock runs fn while holding a lock on key, releasing it afterward
// regardless of fn's outcome.
func (dl *DistributedLock) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	lock, err := dl.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	return fn()
}
