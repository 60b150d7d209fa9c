package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
)

func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis queue tests")
	}
	ctx := context.Background()
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	key := "nsorch:test:queue:" + uuid.NewString()
	t.Cleanup(func() { _ = rdb.Del(context.Background(), key).Err() })
	q := NewRedisQueue(rdb, key)

	first := types.FallbackItem{OperationID: uuid.New(), Reason: "MANUAL_REQUEST"}
	second := types.FallbackItem{OperationID: uuid.New(), Reason: "MANUAL_REQUEST"}
	if err := q.Push(ctx, first); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := q.Push(ctx, second); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := q.Pop(ctx, time.Second)
	if err != nil || got == nil || got.OperationID != first.OperationID {
		t.Fatalf("pop: want=%s got=%v err=%v", first.OperationID, got, err)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("len: want=1 got=%d", n)
	}
}
