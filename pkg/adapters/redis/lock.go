package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the host lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire host lock")
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker guards the single-writer invariant across processes: a host
// process takes the session lock before running, so two hosts can never
// write the same session's documents concurrently.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires the session lock using Redis SET NX PX, polling until it
// succeeds or ctx is done. The returned UnlockFunc releases only if this
// holder still owns the lock.
func (l *Locker) Lock(ctx context.Context, session string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + session
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
			if err != nil {
				return nil, fmt.Errorf("redis error acquiring lock: %w", err)
			}
			if success {
				return func(ctx context.Context) error {
					// Value-checked release so an expired-and-
					// reacquired lock is never deleted by the
					// previous holder.
					script := `
						if redis.call("get", KEYS[1]) == ARGV[1] then
							return redis.call("del", KEYS[1])
						else
							return 0
						end
					`
					return l.client.Eval(ctx, script, []string{lockKey}, val).Err()
				}, nil
			}
		}
	}
}
