package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
)

const DefaultRedisKey = "nsorch:fallback:queue"

// RedisQueue is a FIFO list: LPUSH on enqueue, BRPOP on dequeue.
type RedisQueue struct {
	rdb    goredis.UniversalClient
	key    string
	closed atomic.Bool
}

func NewRedisQueue(rdb goredis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, item types.FallbackItem) error {
	if q.closed.Load() {
		return ErrClosed
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) (*types.FallbackItem, error) {
	if q.closed.Load() {
		return nil, ErrClosed
	}
	if wait < time.Second {
		wait = time.Second
	}
	res, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("redis brpop %s: %w", q.key, err)
	}
	// BRPOP replies [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("redis brpop %s: unexpected reply length %d", q.key, len(res))
	}
	var item types.FallbackItem
	if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
		return nil, fmt.Errorf("decode fallback item: %w", err)
	}
	return &item, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Close stops this handle; the client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
