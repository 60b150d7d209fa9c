package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/queue"
)

const DefaultFallbackVersion = "last_known_good"

type FallbackPolicy struct {
	DefaultVersion string
	Timeout        time.Duration
}

type FallbackService interface {
	InitiateFallbackRecovery(ctx context.Context, ownerID, reason string, fallbackVersion *string) (uuid.UUID, error)
	// ProcessItem consumes one queue item. It returns ErrLockContended when the item should be
	// requeued; every other outcome, including a failed restore, is final and returns nil.
	ProcessItem(ctx context.Context, item types.FallbackItem) error
	// RequeueQueued re-pushes queued receipts enqueued before enqueuedBefore; zero means all of them.
	RequeueQueued(ctx context.Context, enqueuedBefore time.Time) (int, error)
	FailStaleFallbacks(ctx context.Context, olderThan time.Time) (int, error)
	QueueDepth(ctx context.Context) (int64, error)
	GetFallbackOperation(ctx context.Context, id uuid.UUID) (*types.FallbackOperation, error)
}

type fallbackService struct {
	deps     Deps
	log      *logger.Logger
	queue    queue.FallbackQueue
	executor FallbackExecutor
	lock     LockPolicy
	policy   FallbackPolicy
}

func NewFallbackService(deps Deps, q queue.FallbackQueue, executor FallbackExecutor, lockPolicy LockPolicy, policy FallbackPolicy) FallbackService {
	deps = deps.withDefaults()
	lockPolicy = lockPolicy.withDefaults()
	if strings.TrimSpace(policy.DefaultVersion) == "" {
		policy.DefaultVersion = DefaultFallbackVersion
	}
	if policy.Timeout <= 0 {
		policy.Timeout = lockPolicy.Lease
	}
	return &fallbackService{
		deps:     deps,
		log:      deps.Log.With("service", "FallbackService"),
		queue:    q,
		executor: executor,
		lock:     lockPolicy,
		policy:   policy,
	}
}

// InitiateFallbackRecovery persists a queued receipt and enqueues it. It never waits for the restore.
func (s *fallbackService) InitiateFallbackRecovery(ctx context.Context, ownerID, reason string, fallbackVersion *string) (uuid.UUID, error) {
	const op = "fallback.initiate"
	reason = strings.ToUpper(strings.TrimSpace(reason))
	if !domain.IsKnownFallbackReason(reason) {
		return uuid.Nil, domain.NewError(domain.CodeValidation, op, "unknown fallback reason "+reason, nil)
	}
	if fallbackVersion != nil {
		v := strings.TrimSpace(*fallbackVersion)
		if v == "" {
			fallbackVersion = nil
		} else {
			fallbackVersion = &v
		}
	}

	var item types.FallbackItem
	err := s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		ns, err := s.deps.Namespaces.GetLiveByOwner(dbc, strings.TrimSpace(ownerID))
		if err != nil {
			return err
		}
		if ns == nil {
			return domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
		}
		if ns, err = s.deps.Namespaces.LockByID(dbc, ns.ID); err != nil {
			return err
		}
		now := s.deps.now()
		fop := &types.FallbackOperation{
			ID:              uuid.New(),
			NamespaceID:     ns.ID,
			Reason:          reason,
			FallbackVersion: fallbackVersion,
			Status:          domain.FallbackStatusQueued,
			EnqueuedAt:      now,
			UpdatedAt:       now,
		}
		if err := s.deps.Fallbacks.Create(dbc, fop); err != nil {
			return err
		}
		data := map[string]any{
			"operation_id": fop.ID,
			"reason":       reason,
		}
		if fallbackVersion != nil {
			data["fallback_version"] = *fallbackVersion
		}
		if err := appendEvent(dbc, s.deps.Events, ns, domain.EventFallbackInitiated, data, ns.CurrentCheckpointHash); err != nil {
			return err
		}
		item = types.FallbackItem{
			OperationID:     fop.ID,
			NamespaceID:     ns.ID,
			Reason:          reason,
			FallbackVersion: fallbackVersion,
			EnqueuedAt:      now,
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.deps.Recorder.ObserveFallback(reason, domain.FallbackStatusQueued, 0)
	if s.queue != nil {
		if err := s.queue.Push(ctx, item); err != nil {
			// The receipt stays queued; RequeueQueued picks it up on the next sweep or restart.
			s.log.Warn("fallback enqueue failed", "operation_id", item.OperationID, "namespace_id", item.NamespaceID, "error", err)
		}
	}
	return item.OperationID, nil
}

func (s *fallbackService) ProcessItem(ctx context.Context, item types.FallbackItem) error {
	const op = "fallback.process"
	dbc := dbctx.Context{Ctx: ctx}
	fop, err := s.deps.Fallbacks.GetByID(dbc, item.OperationID)
	if err != nil {
		return domain.Wrap(domain.CodeRetryable, op, err)
	}
	if fop == nil || fop.Status != domain.FallbackStatusQueued {
		s.log.Debug("fallback item already consumed", "operation_id", item.OperationID)
		return nil
	}

	ctx, span := observability.Tracer().Start(ctx, "fallback.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("fallback.operation_id", fop.ID.String()),
		attribute.String("fallback.reason", fop.Reason),
		attribute.String("namespace.id", fop.NamespaceID.String()),
	)

	lease, err := acquireMergeLock(ctx, s.deps.Locker, op, fop.NamespaceID, s.lock)
	if err != nil {
		return err
	}
	defer releaseLock(s.deps.Locker, s.log, lease)

	var (
		ns      *types.Namespace
		claimed bool
		dropped string
	)
	err = s.deps.base().Write(ctx, "fallback.claim", func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, fop.NamespaceID)
		if err != nil {
			return err
		}
		now := s.deps.now()
		if cur == nil || cur.Status == domain.NamespaceStatusDeleted || cur.Status == domain.NamespaceStatusDeleting {
			dropped = "namespace deleted"
			_, err := s.deps.Fallbacks.UpdateFieldsIfStatus(dbc, fop.ID, domain.FallbackStatusQueued, map[string]interface{}{
				"status":        domain.FallbackStatusFailed,
				"error_message": dropped,
				"completed_at":  now,
				"updated_at":    now,
			})
			return err
		}
		ok, err := s.deps.Fallbacks.UpdateFieldsIfStatus(dbc, fop.ID, domain.FallbackStatusQueued, map[string]interface{}{
			"status":     domain.FallbackStatusRunning,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		ns, claimed = cur, ok
		return nil
	})
	if err != nil {
		return err
	}
	if dropped != "" {
		s.deps.Recorder.ObserveFallback(fop.Reason, domain.FallbackStatusFailed, 0)
		s.log.Info("fallback dropped", "operation_id", fop.ID, "namespace_id", fop.NamespaceID, "reason", dropped)
		return nil
	}
	if !claimed {
		return nil
	}

	version := s.versionFor(fop)

	// Once claimed, the restore and its closing write outlive the caller; only policy.Timeout stops them.
	work := context.WithoutCancel(ctx)
	stop := keepAlive(s.deps.Locker, s.log, lease, s.lock.Lease)
	defer stop()
	started := time.Now()
	execCtx, cancel := context.WithTimeout(work, s.policy.Timeout)
	defer cancel()
	result, restoreErr := s.executor.Restore(execCtx, FallbackInput{
		OperationID:           fop.ID,
		NamespaceID:           ns.ID,
		OwnerID:               ns.OwnerID,
		Reason:                fop.Reason,
		FallbackVersion:       version,
		CurrentCheckpointHash: ns.CurrentCheckpointHash,
		CheckpointSizeBytes:   ns.CheckpointSizeBytes,
	})
	cancel()
	stop()
	elapsed := time.Since(started)
	if restoreErr == nil && !domain.IsCheckpointHash(result.CheckpointHash) {
		restoreErr = fmt.Errorf("executor returned malformed checkpoint %q", result.CheckpointHash)
	}

	if restoreErr == nil {
		conflict := false
		err = s.deps.base().Write(work, "fallback.complete", func(dbc dbctx.Context) error {
			cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
			if err != nil {
				return err
			}
			now := s.deps.now()
			nextVersion := ns.VersionCount + 1
			ok, err := s.deps.Namespaces.UpdateFieldsIfVersion(dbc, ns.ID, ns.VersionCount, map[string]interface{}{
				"status":                  domain.NamespaceStatusActive,
				"version_count":           nextVersion,
				"current_checkpoint_hash": result.CheckpointHash,
				"checkpoint_size_bytes":   result.CheckpointSizeBytes,
				"updated_at":              now,
			})
			if err != nil {
				return err
			}
			if !ok {
				conflict = true
				return nil
			}
			if _, err := s.deps.Fallbacks.UpdateFieldsIfStatus(dbc, fop.ID, domain.FallbackStatusRunning, map[string]interface{}{
				"status":       domain.FallbackStatusCompleted,
				"completed_at": now,
				"updated_at":   now,
			}); err != nil {
				return err
			}
			return appendEvent(dbc, s.deps.Events, cur, domain.EventFallbackCompleted, map[string]any{
				"operation_id":     fop.ID,
				"reason":           fop.Reason,
				"fallback_version": version,
				"previous_status":  cur.Status,
				"version_count":    nextVersion,
				"duration_ms":      elapsed.Milliseconds(),
			}, result.CheckpointHash)
		})
		if err != nil {
			return err
		}
		if !conflict {
			s.deps.Recorder.ObserveFallback(fop.Reason, domain.FallbackStatusCompleted, elapsed)
			s.log.Info("fallback completed", "operation_id", fop.ID, "namespace_id", ns.ID, "fallback_version", version)
			return nil
		}
		restoreErr = errors.New("namespace version changed during fallback")
	}

	span.RecordError(restoreErr)
	span.SetStatus(codes.Error, "fallback failed")
	if _, err := s.failReceipt(work, "fallback.fail", fop, version, restoreErr.Error()); err != nil {
		return err
	}
	s.deps.Recorder.ObserveFallback(fop.Reason, domain.FallbackStatusFailed, elapsed)
	s.log.Warn("fallback failed", "operation_id", fop.ID, "namespace_id", ns.ID, "error", restoreErr)
	return nil
}

func (s *fallbackService) versionFor(fop *types.FallbackOperation) string {
	if fop.FallbackVersion != nil && *fop.FallbackVersion != "" {
		return *fop.FallbackVersion
	}
	return s.policy.DefaultVersion
}

// failReceipt moves a running receipt to failed, leaves an active namespace corrupted and writes
// fallback_failed. It reports false when the receipt was no longer running.
func (s *fallbackService) failReceipt(ctx context.Context, op string, fop *types.FallbackOperation, version, reason string) (bool, error) {
	moved := false
	err := s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, fop.NamespaceID)
		if err != nil {
			return err
		}
		now := s.deps.now()
		ok, err := s.deps.Fallbacks.UpdateFieldsIfStatus(dbc, fop.ID, domain.FallbackStatusRunning, map[string]interface{}{
			"status":        domain.FallbackStatusFailed,
			"error_message": reason,
			"completed_at":  now,
			"updated_at":    now,
		})
		if err != nil || !ok {
			return err
		}
		moved = true
		if cur == nil {
			return nil
		}
		if cur.Status == domain.NamespaceStatusActive {
			if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
				"status":     domain.NamespaceStatusCorrupted,
				"updated_at": now,
			}); err != nil {
				return err
			}
		}
		return appendEvent(dbc, s.deps.Events, cur, domain.EventFallbackFailed, map[string]any{
			"operation_id":     fop.ID,
			"reason":           fop.Reason,
			"fallback_version": version,
			"error":            reason,
		}, cur.CurrentCheckpointHash)
	})
	return moved, err
}

// FailStaleFallbacks fails running receipts untouched since olderThan whose lock has lapsed.
// A worker that crashed or panicked mid-restore leaves exactly such a receipt behind.
func (s *fallbackService) FailStaleFallbacks(ctx context.Context, olderThan time.Time) (int, error) {
	const op = "fallback.fail_stale"
	stale, err := s.deps.Fallbacks.ListStaleRunning(dbctx.Context{Ctx: ctx}, olderThan, 0)
	if err != nil {
		return 0, domain.Wrap(domain.CodeInternal, op, err)
	}
	failed := 0
	for _, fop := range stale {
		held, err := s.deps.Locker.IsHeld(ctx, mergeLockKey(fop.NamespaceID))
		if err != nil {
			return failed, domain.Wrap(domain.CodeRetryable, op, err)
		}
		if held {
			continue
		}
		moved, err := s.failReceipt(ctx, op, fop, s.versionFor(fop), "lease expired")
		if err != nil {
			return failed, err
		}
		if moved {
			failed++
			s.deps.Recorder.ObserveFallback(fop.Reason, domain.FallbackStatusFailed, 0)
			s.log.Warn("stale fallback failed", "operation_id", fop.ID, "namespace_id", fop.NamespaceID)
		}
	}
	return failed, nil
}

// RequeueQueued pushes receipts still in queued state. Duplicate items are harmless because
// consumption claims the receipt row, but the cutoff keeps the sweep from flooding the queue
// with items workers simply have not reached yet.
func (s *fallbackService) RequeueQueued(ctx context.Context, enqueuedBefore time.Time) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	ops, err := s.deps.Fallbacks.ListQueued(dbctx.Context{Ctx: ctx}, enqueuedBefore, 0)
	if err != nil {
		return 0, domain.Wrap(domain.CodeInternal, "fallback.requeue", err)
	}
	n := 0
	for _, fop := range ops {
		if err := s.queue.Push(ctx, types.FallbackItem{
			OperationID:     fop.ID,
			NamespaceID:     fop.NamespaceID,
			Reason:          fop.Reason,
			FallbackVersion: fop.FallbackVersion,
			EnqueuedAt:      fop.EnqueuedAt,
		}); err != nil {
			return n, domain.Wrap(domain.CodeRetryable, "fallback.requeue", err)
		}
		n++
	}
	return n, nil
}

func (s *fallbackService) QueueDepth(ctx context.Context) (int64, error) {
	if s.queue == nil {
		return 0, nil
	}
	n, err := s.queue.Len(ctx)
	if err != nil {
		return 0, domain.Wrap(domain.CodeRetryable, "fallback.queue_depth", err)
	}
	s.deps.Recorder.SetFallbackQueueDepth(n)
	return n, nil
}

func (s *fallbackService) GetFallbackOperation(ctx context.Context, id uuid.UUID) (*types.FallbackOperation, error) {
	fop, err := s.deps.Fallbacks.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "fallback.get", err)
	}
	return fop, nil
}
