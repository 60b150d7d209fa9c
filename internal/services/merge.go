package services

import (
	"context"
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
)

type MergePolicy struct {
	// MinInterval throttles triggers per namespace unless forced.
	MinInterval time.Duration
	// Timeout bounds a single executor run; zero means the lock lease.
	Timeout time.Duration
}

type MergeService interface {
	TriggerMerge(ctx context.Context, ownerID, opType string, force bool) (*types.MergeOperation, error)
	ExecuteMerge(ctx context.Context, operationID uuid.UUID) (bool, error)
	RunMerge(ctx context.Context, ownerID, opType string, force bool) (*types.MergeOperation, error)
	ListMergeOperations(ctx context.Context, ownerID string) ([]*types.MergeOperation, error)
	GetMergeOperation(ctx context.Context, id uuid.UUID) (*types.MergeOperation, error)
	FailStaleOperations(ctx context.Context, olderThan time.Time) (int, error)
}

type mergeService struct {
	deps     Deps
	log      *logger.Logger
	executor MergeExecutor
	lock     LockPolicy
	policy   MergePolicy
}

func NewMergeService(deps Deps, executor MergeExecutor, lockPolicy LockPolicy, policy MergePolicy) MergeService {
	deps = deps.withDefaults()
	lockPolicy = lockPolicy.withDefaults()
	if policy.Timeout <= 0 {
		policy.Timeout = lockPolicy.Lease
	}
	return &mergeService{
		deps:     deps,
		log:      deps.Log.With("service", "MergeService"),
		executor: executor,
		lock:     lockPolicy,
		policy:   policy,
	}
}

// TriggerMerge records a PENDING merge. The throttle is a business rule checked here, before any lock;
// the lock taken by ExecuteMerge is what serializes execution.
func (s *mergeService) TriggerMerge(ctx context.Context, ownerID, opType string, force bool) (*types.MergeOperation, error) {
	const op = "merge.trigger"
	opType = strings.ToLower(strings.TrimSpace(opType))
	if opType == "" {
		opType = domain.MergeTypeManual
	}
	if !domain.IsKnownMergeType(opType) {
		return nil, domain.NewError(domain.CodeValidation, op, "unknown operation_type "+opType, nil)
	}

	var mop *types.MergeOperation
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
		if ns.Status != domain.NamespaceStatusActive {
			return domain.NewError(domain.CodeNotActive, op, "namespace is "+ns.Status, nil)
		}
		now := s.deps.now()
		if !force && ns.LastMergeAt != nil && s.policy.MinInterval > 0 {
			if elapsed := now.Sub(*ns.LastMergeAt); elapsed < s.policy.MinInterval {
				return domain.NewError(domain.CodeTooRecent, op,
					fmt.Sprintf("last merge %s ago, minimum interval %s", elapsed.Truncate(time.Second), s.policy.MinInterval), nil)
			}
		}
		mop = &types.MergeOperation{
			ID:                   uuid.New(),
			NamespaceID:          ns.ID,
			OperationType:        opType,
			Status:               domain.MergeStatusPending,
			SourceCheckpointHash: ns.CurrentCheckpointHash,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.deps.Merges.Create(dbc, mop); err != nil {
			return err
		}
		if err := s.deps.Namespaces.UpdateFields(dbc, ns.ID, map[string]interface{}{
			"last_merge_at": now,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		return appendEvent(dbc, s.deps.Events, ns, domain.EventMergeTriggered, map[string]any{
			"operation_id":   mop.ID,
			"operation_type": opType,
			"force":          force,
		}, ns.CurrentCheckpointHash)
	})
	if err != nil {
		return nil, err
	}
	s.deps.Recorder.ObserveMergeOperation(opType, domain.MergeStatusPending, 0)
	return mop, nil
}

// ExecuteMerge runs a PENDING operation under the namespace merge lock.
// Lock contention returns ErrLockContended; a failing executor returns ErrMergeFailed and leaves
// the namespace checkpoint and version untouched.
func (s *mergeService) ExecuteMerge(ctx context.Context, operationID uuid.UUID) (bool, error) {
	const op = "merge.execute"
	mop, err := s.deps.Merges.GetByID(dbctx.Context{Ctx: ctx}, operationID)
	if err != nil {
		return false, domain.Wrap(domain.CodeInternal, op, err)
	}
	if mop == nil {
		return false, domain.NewError(domain.CodeNotFound, op, "merge operation not found", nil)
	}
	if mop.IsTerminal() {
		return false, domain.NewError(domain.CodeValidation, op, "merge operation already "+mop.Status, nil)
	}

	ctx, span := observability.Tracer().Start(ctx, "merge.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("merge.operation_id", mop.ID.String()),
		attribute.String("namespace.id", mop.NamespaceID.String()),
	)

	lease, err := acquireMergeLock(ctx, s.deps.Locker, op, mop.NamespaceID, s.lock)
	if err != nil {
		span.SetStatus(codes.Error, "lock")
		return false, err
	}
	defer releaseLock(s.deps.Locker, s.log, lease)

	var (
		ns        *types.Namespace
		notActive string
	)
	err = s.deps.base().Write(ctx, "merge.start", func(dbc dbctx.Context) error {
		cur, err := s.deps.Merges.GetByID(dbc, operationID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != domain.MergeStatusPending {
			return domain.NewError(domain.CodeLockContended, op, "merge operation already taken", nil)
		}
		if ns, err = s.deps.Namespaces.LockByID(dbc, cur.NamespaceID); err != nil {
			return err
		}
		now := s.deps.now()
		if ns == nil || ns.Status != domain.NamespaceStatusActive {
			status := "missing"
			if ns != nil {
				status = ns.Status
			}
			notActive = status
			return s.failOperation(dbc, ns, cur, domain.MergeStatusPending, "namespace is "+status, now)
		}
		ok, err := s.deps.Merges.UpdateFieldsIfStatus(dbc, cur.ID, domain.MergeStatusPending, map[string]interface{}{
			"status":     domain.MergeStatusRunning,
			"started_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewError(domain.CodeLockContended, op, "merge operation already taken", nil)
		}
		mop = cur
		return appendEvent(dbc, s.deps.Events, ns, domain.EventMergeStarted, map[string]any{
			"operation_id": cur.ID,
		}, ns.CurrentCheckpointHash)
	})
	if err != nil {
		return false, err
	}
	if notActive != "" {
		s.deps.Recorder.ObserveMergeOperation(mop.OperationType, domain.MergeStatusFailed, 0)
		return false, domain.NewError(domain.CodeNotActive, op, "namespace is "+notActive, nil)
	}

	// A RUNNING merge is not cancellable by its caller; only policy.Timeout bounds the executor.
	work := context.WithoutCancel(ctx)
	stop := keepAlive(s.deps.Locker, s.log, lease, s.lock.Lease)
	defer stop()
	started := time.Now()
	execCtx, cancel := context.WithTimeout(work, s.policy.Timeout)
	defer cancel()
	result, execErr := s.executor.Execute(execCtx, MergeInput{
		OperationID:          mop.ID,
		OperationType:        mop.OperationType,
		NamespaceID:          ns.ID,
		OwnerID:              ns.OwnerID,
		SourceCheckpointHash: mop.SourceCheckpointHash,
		VersionCount:         ns.VersionCount,
		CheckpointSizeBytes:  ns.CheckpointSizeBytes,
	})
	cancel()
	stop()
	elapsed := time.Since(started)
	if execErr == nil && !domain.IsCheckpointHash(result.TargetCheckpointHash) {
		execErr = fmt.Errorf("executor returned malformed checkpoint %q", result.TargetCheckpointHash)
	}

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "merge failed")
		if err := s.deps.base().Write(work, "merge.fail", func(dbc dbctx.Context) error {
			cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
			if err != nil {
				return err
			}
			return s.failOperation(dbc, cur, mop, domain.MergeStatusRunning, execErr.Error(), s.deps.now())
		}); err != nil {
			return false, err
		}
		s.deps.Recorder.ObserveMergeOperation(mop.OperationType, domain.MergeStatusFailed, elapsed)
		s.log.Warn("merge failed", "operation_id", mop.ID, "namespace_id", ns.ID, "error", execErr)
		return false, domain.NewError(domain.CodeMergeFailed, op, execErr.Error(), execErr)
	}

	conflict := false
	err = s.deps.base().Write(work, "merge.complete", func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
		if err != nil {
			return err
		}
		now := s.deps.now()
		nextVersion := ns.VersionCount + 1
		ok, err := s.deps.Namespaces.UpdateFieldsIfVersion(dbc, ns.ID, ns.VersionCount, map[string]interface{}{
			"version_count":           nextVersion,
			"current_checkpoint_hash": result.TargetCheckpointHash,
			"checkpoint_size_bytes":   result.CheckpointSizeBytes,
			"last_merge_at":           now,
			"updated_at":              now,
		})
		if err != nil {
			return err
		}
		if !ok {
			conflict = true
			return s.failOperation(dbc, cur, mop, domain.MergeStatusRunning, "namespace version changed during merge", now)
		}
		target := result.TargetCheckpointHash
		if _, err := s.deps.Merges.UpdateFieldsIfStatus(dbc, mop.ID, domain.MergeStatusRunning, map[string]interface{}{
			"status":                 domain.MergeStatusCompleted,
			"target_checkpoint_hash": target,
			"completed_at":           now,
			"updated_at":             now,
		}); err != nil {
			return err
		}
		return appendEvent(dbc, s.deps.Events, cur, domain.EventMergeCompleted, map[string]any{
			"operation_id":      mop.ID,
			"source_checkpoint": mop.SourceCheckpointHash,
			"version_count":     nextVersion,
			"duration_ms":       elapsed.Milliseconds(),
		}, target)
	})
	if err != nil {
		return false, err
	}
	if conflict {
		s.deps.Recorder.ObserveMergeOperation(mop.OperationType, domain.MergeStatusFailed, elapsed)
		return false, domain.NewError(domain.CodeMergeFailed, op, "namespace version changed during merge", nil)
	}
	s.deps.Recorder.ObserveMergeOperation(mop.OperationType, domain.MergeStatusCompleted, elapsed)
	s.log.Info("merge completed", "operation_id", mop.ID, "namespace_id", ns.ID, "version_count", ns.VersionCount+1)
	return true, nil
}

// failOperation moves op from expectedStatus to FAILED and writes merge_failed. ns may be nil only
// when the namespace row vanished, in which case no event can be attributed.
func (s *mergeService) failOperation(dbc dbctx.Context, ns *types.Namespace, mop *types.MergeOperation, expectedStatus, reason string, now time.Time) error {
	ok, err := s.deps.Merges.UpdateFieldsIfStatus(dbc, mop.ID, expectedStatus, map[string]interface{}{
		"status":        domain.MergeStatusFailed,
		"error_message": reason,
		"completed_at":  now,
		"updated_at":    now,
	})
	if err != nil || !ok || ns == nil {
		return err
	}
	return appendEvent(dbc, s.deps.Events, ns, domain.EventMergeFailed, map[string]any{
		"operation_id": mop.ID,
		"error":        reason,
	}, ns.CurrentCheckpointHash)
}

func (s *mergeService) RunMerge(ctx context.Context, ownerID, opType string, force bool) (*types.MergeOperation, error) {
	mop, err := s.TriggerMerge(ctx, ownerID, opType, force)
	if err != nil {
		return nil, err
	}
	_, execErr := s.ExecuteMerge(ctx, mop.ID)
	latest, err := s.GetMergeOperation(ctx, mop.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		latest = mop
	}
	return latest, execErr
}

func (s *mergeService) ListMergeOperations(ctx context.Context, ownerID string) ([]*types.MergeOperation, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ns, err := s.deps.Namespaces.GetLatestByOwner(dbc, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "merge.list", err)
	}
	if ns == nil {
		return []*types.MergeOperation{}, nil
	}
	out, err := s.deps.Merges.ListByNamespace(dbc, ns.ID, 0)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "merge.list", err)
	}
	return out, nil
}

func (s *mergeService) GetMergeOperation(ctx context.Context, id uuid.UUID) (*types.MergeOperation, error) {
	mop, err := s.deps.Merges.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "merge.get", err)
	}
	return mop, nil
}

// FailStaleOperations fails non-terminal operations untouched since olderThan whose lock has lapsed,
// so a crashed worker does not block retriggering forever.
func (s *mergeService) FailStaleOperations(ctx context.Context, olderThan time.Time) (int, error) {
	stale, err := s.deps.Merges.ListStale(dbctx.Context{Ctx: ctx}, olderThan, 0)
	if err != nil {
		return 0, domain.Wrap(domain.CodeInternal, "merge.fail_stale", err)
	}
	failed := 0
	for _, mop := range stale {
		held, err := s.deps.Locker.IsHeld(ctx, mergeLockKey(mop.NamespaceID))
		if err != nil {
			return failed, domain.Wrap(domain.CodeRetryable, "merge.fail_stale", err)
		}
		if held {
			continue
		}
		moved := false
		err = s.deps.base().Write(ctx, "merge.fail_stale", func(dbc dbctx.Context) error {
			ns, err := s.deps.Namespaces.LockByID(dbc, mop.NamespaceID)
			if err != nil {
				return err
			}
			cur, err := s.deps.Merges.GetByID(dbc, mop.ID)
			if err != nil || cur == nil || cur.IsTerminal() {
				return err
			}
			moved = true
			return s.failOperation(dbc, ns, cur, cur.Status, "lease expired", s.deps.now())
		})
		if err != nil {
			return failed, err
		}
		if moved {
			failed++
			s.deps.Recorder.ObserveMergeOperation(mop.OperationType, domain.MergeStatusFailed, 0)
			s.log.Warn("stale merge operation failed", "operation_id", mop.ID, "namespace_id", mop.NamespaceID, "previous_status", mop.Status)
		}
	}
	return failed, nil
}
