package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

func TestTombstoneBusPublishForward(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := NewClient(ctx, Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	bus, err := NewTombstoneBus(logger.Nop(), rdb, "nsorch:test:tombstones:"+uuid.NewString())
	if err != nil {
		t.Fatalf("NewTombstoneBus: %v", err)
	}
	got := make(chan types.Tombstone, 1)
	if err := bus.StartForwarder(ctx, func(ts types.Tombstone) { got <- ts }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := types.Tombstone{NamespaceID: uuid.New(), OwnerID: "L1", Forced: true}
	if err := bus.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case ts := <-got:
		if ts.NamespaceID != want.NamespaceID || !ts.Forced {
			t.Fatalf("tombstone: want=%+v got=%+v", want, ts)
		}
	case <-ctx.Done():
		t.Fatalf("tombstone not forwarded")
	}
}

func TestNewClientRequiresAddr(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatalf("empty addr: want error got nil")
	}
}
