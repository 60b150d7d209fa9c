package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

const DefaultTombstoneChannel = "nsorch:tombstones"

// TombstoneBus publishes deletion tombstones for external cleanup collaborators.
type TombstoneBus interface {
	Publish(ctx context.Context, t types.Tombstone) error
	StartForwarder(ctx context.Context, onMsg func(t types.Tombstone)) error
}

type tombstoneBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewTombstoneBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) (TombstoneBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if channel == "" {
		channel = DefaultTombstoneChannel
	}
	return &tombstoneBus{
		log:     log.With("service", "RedisTombstoneBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *tombstoneBus) Publish(ctx context.Context, t types.Tombstone) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *tombstoneBus) StartForwarder(ctx context.Context, onMsg func(t types.Tombstone)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var t types.Tombstone
				if err := json.Unmarshal([]byte(m.Payload), &t); err != nil {
					b.log.Warn("bad redis tombstone payload", "error", err)
					continue
				}
				onMsg(t)
			}
		}
	}()

	return nil
}
