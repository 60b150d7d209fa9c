package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// RedisLocker implements Locker with SET NX PX and token-checked Lua scripts,
// so only the lease owner can release or extend.
type RedisLocker struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisLocker(rdb goredis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (r *RedisLocker) Acquire(ctx context.Context, key Key, lease, wait time.Duration) (*Lease, error) {
	if r == nil || r.rdb == nil {
		return nil, fmt.Errorf("redis locker not initialized")
	}
	token := newToken()
	name := key.withPrefix(r.prefix)
	var acquiredAt time.Time
	err := acquireWithWait(ctx, wait, func(ctx context.Context) (bool, error) {
		acquiredAt = time.Now()
		err := r.rdb.SetArgs(ctx, name, token, goredis.SetArgs{Mode: "NX", TTL: lease}).Err()
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("redis lock %s: %w", name, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Lease{Key: key, Token: token, ExpiresAt: acquiredAt.Add(lease)}, nil
}

func (r *RedisLocker) Release(ctx context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	n, err := releaseScript.Run(ctx, r.rdb, []string{l.Key.withPrefix(r.prefix)}, l.Token).Int64()
	if err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (r *RedisLocker) Extend(ctx context.Context, l *Lease, lease time.Duration) error {
	if l == nil {
		return ErrNotHeld
	}
	now := time.Now()
	n, err := extendScript.Run(ctx, r.rdb, []string{l.Key.withPrefix(r.prefix)}, l.Token, lease.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis extend: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	l.ExpiresAt = now.Add(lease)
	return nil
}

func (r *RedisLocker) IsHeld(ctx context.Context, key Key) (bool, error) {
	n, err := r.rdb.Exists(ctx, key.withPrefix(r.prefix)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
