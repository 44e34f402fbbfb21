package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock is held by another process")

// release deletes the key only while it still carries our token, so a holder
// whose TTL expired cannot drop a lock someone else has since taken.
var release = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held single-owner lease on a key.
type Lock struct {
	rdb   goredis.Cmdable
	key   string
	token string
}

// TryLock takes key for ttl with SET NX. It does not wait.
func TryLock(ctx context.Context, rdb goredis.Cmdable, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{rdb: rdb, key: key, token: token}, nil
}

// Release gives the lease back. Releasing an expired or stolen lease is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := release.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// Locker hands out leases on a shared client.
type Locker struct {
	rdb goredis.Cmdable
}

func NewLocker(rdb goredis.Cmdable) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire reports ok=false without error when the key is already held.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, err := TryLock(ctx, l.rdb, key, ttl)
	if errors.Is(err, ErrLockHeld) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return lock.Release, true, nil
}
