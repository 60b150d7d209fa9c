package app

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/namespace-orchestrator/internal/platform/redis"
	"github.com/yungbote/namespace-orchestrator/internal/data/db"
	"github.com/yungbote/namespace-orchestrator/internal/lock"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/queue"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

// Infra holds the stores and coordination primitives; Close releases them in reverse order.
type Infra struct {
	DB        *gorm.DB
	Redis     *goredis.Client
	Locker    lock.Locker
	Queue     queue.FallbackQueue
	Tombstone services.TombstoneNotifier

	closers []func() error
}

func openDatabase(log *logger.Logger, cfg DatabaseConfig) (*gorm.DB, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite":
		svc, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			_ = svc.Close()
			return nil, nil, fmt.Errorf("sqlite automigrate: %w", err)
		}
		return svc.DB(), svc.Close, nil
	default:
		svc, err := db.NewPostgresService(log, cfg.Postgres())
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			_ = svc.Close()
			return nil, nil, fmt.Errorf("postgres automigrate: %w", err)
		}
		return svc.DB(), svc.Close, nil
	}
}

func wireInfra(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (*Infra, error) {
	log.Info("Wiring infrastructure...")
	infra := &Infra{}

	theDB, closeDB, err := openDatabase(log, cfg.Database)
	if err != nil {
		return nil, err
	}
	infra.DB = theDB
	infra.closers = append(infra.closers, closeDB)

	var base lock.Locker
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		infra.Redis = rdb
		infra.closers = append(infra.closers, rdb.Close)

		base = lock.NewRedisLocker(rdb, cfg.Redis.LockPrefix)
		infra.Queue = queue.NewRedisQueue(rdb, cfg.Redis.QueueKey)
		bus, err := redis.NewTombstoneBus(log, rdb, cfg.Redis.TombstoneChannel)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("init tombstone bus: %w", err)
		}
		infra.Tombstone = services.TombstoneNotifierFunc(bus.Publish)
		log.Info("Using Redis for locks, fallback queue and tombstones", "addr", cfg.Redis.Addr)
	} else {
		mem := lock.NewMemoryLocker()
		infra.closers = append(infra.closers, mem.Close)
		base = mem
		infra.Queue = queue.NewMemoryQueue(cfg.Fallback.QueueCapacity)
		infra.Tombstone = services.NewLogTombstoneNotifier(log)
		log.Warn("REDIS_ADDR not set; using in-process locks and fallback queue (single replica only)")
	}
	infra.closers = append(infra.closers, infra.Queue.Close)

	if metrics != nil {
		infra.Locker = lock.WithObserver(base, metrics)
	} else {
		infra.Locker = base
	}
	return infra, nil
}

func (i *Infra) Close() {
	if i == nil {
		return
	}
	for j := len(i.closers) - 1; j >= 0; j-- {
		_ = i.closers[j]()
	}
	i.closers = nil
}
