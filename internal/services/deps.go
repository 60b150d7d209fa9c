package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/namespace-orchestrator/internal/data/aggregates"
	"github.com/yungbote/namespace-orchestrator/internal/data/repos"
	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/lock"
	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// Deps are the collaborators shared by every namespace service.
type Deps struct {
	DB         *gorm.DB
	Log        *logger.Logger
	Namespaces repos.NamespaceRepo
	Merges     repos.MergeOperationRepo
	Fallbacks  repos.FallbackOperationRepo
	Events     repos.EventLogRepo
	Locker     lock.Locker
	Hooks      aggregates.Hooks
	Recorder   Recorder
	Now        func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) base() aggregates.Base {
	return aggregates.NewBase(d.DB, d.Hooks)
}

func (d Deps) now() time.Time { return d.Now().UTC() }

// LockPolicy bounds every lease taken on a namespace.
type LockPolicy struct {
	Lease time.Duration
	Wait  time.Duration
}

func (p LockPolicy) withDefaults() LockPolicy {
	if p.Lease <= 0 {
		p.Lease = 10 * time.Minute
	}
	if p.Wait < 0 {
		p.Wait = 0
	}
	return p
}

// Recorder receives orchestration outcomes. *observability.Metrics satisfies it.
type Recorder interface {
	ObserveMergeOperation(opType, status string, dur time.Duration)
	ObserveFallback(reason, status string, dur time.Duration)
	ObserveHealth(healthy bool, score float64)
	ObserveJob(job, status string, dur time.Duration)
	SetFallbackQueueDepth(n int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMergeOperation(string, string, time.Duration) {}
func (nopRecorder) ObserveFallback(string, string, time.Duration)       {}
func (nopRecorder) ObserveHealth(bool, float64)                         {}
func (nopRecorder) ObserveJob(string, string, time.Duration)            {}
func (nopRecorder) SetFallbackQueueDepth(int64)                         {}

func mergeLockKey(namespaceID uuid.UUID) lock.Key {
	return lock.Key{NamespaceID: namespaceID, Purpose: lock.PurposeMerge}
}

// acquireMergeLock maps lock failures into the taxonomy: contention is retryable and distinct from business errors.
func acquireMergeLock(ctx context.Context, l lock.Locker, op string, namespaceID uuid.UUID, policy LockPolicy) (*lock.Lease, error) {
	lease, err := l.Acquire(ctx, mergeLockKey(namespaceID), policy.Lease, policy.Wait)
	switch {
	case err == nil:
		return lease, nil
	case errors.Is(err, lock.ErrContended):
		return nil, domain.NewError(domain.CodeLockContended, op, "namespace has an operation in progress", err)
	default:
		return nil, domain.Wrap(domain.CodeRetryable, op, err)
	}
}

func releaseLock(l lock.Locker, log *logger.Logger, lease *lock.Lease) {
	if lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Release(ctx, lease); err != nil {
		log.Warn("lock release failed", "key", lease.Key.String(), "error", err)
	}
}

// keepAlive extends lease every third of its lifetime until the returned stop func is called.
func keepAlive(l lock.Locker, log *logger.Logger, lease *lock.Lease, ttl time.Duration) (stop func()) {
	done := make(chan struct{})
	interval := ttl / 3
	if interval <= 0 {
		return func() {}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				err := l.Extend(ctx, lease, ttl)
				cancel()
				if err != nil {
					log.Warn("lock extend failed", "key", lease.Key.String(), "error", err)
					return
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// appendEvent writes the audit entry for a mutation inside the mutation's transaction.
func appendEvent(dbc dbctx.Context, events repos.EventLogRepo, ns *types.Namespace, eventType string, data map[string]any, checkpointHash string) error {
	if data == nil {
		data = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			data["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			data["request_id"] = td.RequestID
		}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	entry := &types.EventLogEntry{
		NamespaceID: ns.ID,
		OwnerID:     ns.OwnerID,
		EventType:   eventType,
		EventData:   datatypes.JSON(raw),
		CreatedBy:   ctxutil.Actor(dbc.Ctx),
	}
	if checkpointHash != "" {
		h := checkpointHash
		entry.CheckpointHash = &h
	}
	return events.Append(dbc, entry)
}
