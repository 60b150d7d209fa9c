package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type CreateNamespaceInput struct {
	OwnerID                string
	BaseVersion            string
	InitialPrompt          string
	Config                 json.RawMessage
	GuardianProtectedUntil *time.Time
}

type NamespaceService interface {
	CreateNamespace(ctx context.Context, in CreateNamespaceInput) (*types.Namespace, error)
	GetNamespace(ctx context.Context, ownerID string) (*types.Namespace, error)
	DeleteNamespace(ctx context.Context, ownerID string, force bool) (bool, error)
	ListNamespaces(ctx context.Context, filter types.ListFilter) ([]*types.Namespace, error)
	MarkCorrupted(ctx context.Context, ownerID, reason string) (*types.Namespace, error)
	AcknowledgeVersion(ctx context.Context, ownerID string, version int64) (*types.Namespace, error)
	ListEvents(ctx context.Context, ownerID, eventType string, limit int) ([]*types.EventLogEntry, error)
}

type namespaceService struct {
	deps     Deps
	log      *logger.Logger
	hasher   *CheckpointHasher
	notifier TombstoneNotifier
	lock     LockPolicy
}

func NewNamespaceService(deps Deps, hasher *CheckpointHasher, notifier TombstoneNotifier, lockPolicy LockPolicy) NamespaceService {
	deps = deps.withDefaults()
	if notifier == nil {
		notifier = NewLogTombstoneNotifier(deps.Log)
	}
	return &namespaceService{
		deps:     deps,
		log:      deps.Log.With("service", "NamespaceService"),
		hasher:   hasher,
		notifier: notifier,
		lock:     lockPolicy.withDefaults(),
	}
}

func (s *namespaceService) CreateNamespace(ctx context.Context, in CreateNamespaceInput) (*types.Namespace, error) {
	const op = "namespace.create"
	ownerID := strings.TrimSpace(in.OwnerID)
	baseVersion := strings.TrimSpace(in.BaseVersion)
	if ownerID == "" {
		return nil, domain.NewError(domain.CodeValidation, op, "owner_id is required", nil)
	}
	if baseVersion == "" {
		return nil, domain.NewError(domain.CodeValidation, op, "base_version is required", nil)
	}
	metadata, err := domain.EncodeMetadata(in.InitialPrompt, in.Config)
	if err != nil {
		return nil, domain.NewError(domain.CodeValidation, op, err.Error(), err)
	}

	now := s.deps.now()
	checkpoint, err := s.hasher.NewCheckpointHash(ownerID, baseVersion, now)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	keyHash, err := s.hasher.NewEncryptionKeyHash(ownerID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}

	ns := &types.Namespace{
		ID:                     uuid.New(),
		OwnerID:                ownerID,
		Status:                 domain.NamespaceStatusActive,
		BaseVersion:            baseVersion,
		CurrentCheckpointHash:  checkpoint,
		VersionCount:           1,
		ReconciledVersion:      1,
		EncryptionKeyHash:      keyHash,
		Metadata:               metadata,
		GuardianProtectedUntil: in.GuardianProtectedUntil,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	err = s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		existing, err := s.deps.Namespaces.GetLiveByOwner(dbc, ownerID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewError(domain.CodeDuplicate, op, "namespace already exists for owner", nil)
		}
		if err := s.deps.Namespaces.Create(dbc, ns); err != nil {
			return err
		}
		return appendEvent(dbc, s.deps.Events, ns, domain.EventNamespaceCreated, map[string]any{
			"base_version":  baseVersion,
			"version_count": ns.VersionCount,
			"protected":     in.GuardianProtectedUntil != nil,
		}, ns.CurrentCheckpointHash)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("namespace created", "namespace_id", ns.ID, "owner_id", ownerID, "base_version", baseVersion)
	return ns, nil
}

func (s *namespaceService) GetNamespace(ctx context.Context, ownerID string) (*types.Namespace, error) {
	ns, err := s.deps.Namespaces.GetLiveByOwner(dbctx.Context{Ctx: ctx}, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "namespace.get", err)
	}
	return ns, nil
}

func (s *namespaceService) ListNamespaces(ctx context.Context, filter types.ListFilter) ([]*types.Namespace, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	if filter.Status != "" && !domain.IsKnownNamespaceStatus(filter.Status) {
		return nil, domain.NewError(domain.CodeValidation, "namespace.list", "unknown status "+filter.Status, nil)
	}
	out, err := s.deps.Namespaces.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "namespace.list", err)
	}
	return out, nil
}

// DeleteNamespace tombstones the owner's namespace. Guardian protection is only bypassed with force.
// The merge lock is held so deletion never interleaves with a merge or fallback.
func (s *namespaceService) DeleteNamespace(ctx context.Context, ownerID string, force bool) (bool, error) {
	const op = "namespace.delete"
	ns, err := s.GetNamespace(ctx, ownerID)
	if err != nil {
		return false, err
	}
	if ns == nil {
		return false, nil
	}
	if ns.IsProtected(s.deps.now()) && !force {
		return false, domain.NewError(domain.CodeProtected, op, "guardian protection active until "+ns.GuardianProtectedUntil.UTC().Format(time.RFC3339), nil)
	}

	lease, err := acquireMergeLock(ctx, s.deps.Locker, op, ns.ID, s.lock)
	if err != nil {
		return false, err
	}
	defer releaseLock(s.deps.Locker, s.log, lease)

	var tomb *types.Tombstone
	err = s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status == domain.NamespaceStatusDeleted {
			return nil
		}
		now := s.deps.now()
		if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
			"status":     domain.NamespaceStatusDeleting,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
			"status":        domain.NamespaceStatusDeleted,
			"tombstoned_at": now,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		if err := appendEvent(dbc, s.deps.Events, cur, domain.EventNamespaceDeleted, map[string]any{
			"forced":              force,
			"protection_bypassed": force && cur.IsProtected(now),
			"previous_status":     cur.Status,
			"version_count":       cur.VersionCount,
		}, cur.CurrentCheckpointHash); err != nil {
			return err
		}
		tomb = &types.Tombstone{
			NamespaceID:    cur.ID,
			OwnerID:        cur.OwnerID,
			CheckpointHash: cur.CurrentCheckpointHash,
			VersionCount:   cur.VersionCount,
			Forced:         force,
			DeletedAt:      now,
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if tomb == nil {
		return false, nil
	}
	if err := s.notifier.NotifyTombstone(ctx, *tomb); err != nil {
		s.log.Warn("tombstone notification failed", "namespace_id", tomb.NamespaceID, "error", err)
	}
	s.log.Info("namespace deleted", "namespace_id", tomb.NamespaceID, "owner_id", tomb.OwnerID, "forced", force)
	return true, nil
}

// MarkCorrupted moves an ACTIVE namespace to CORRUPTED. Already-corrupted namespaces are returned unchanged.
func (s *namespaceService) MarkCorrupted(ctx context.Context, ownerID, reason string) (*types.Namespace, error) {
	const op = "namespace.mark_corrupted"
	ns, err := s.GetNamespace(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}

	lease, err := acquireMergeLock(ctx, s.deps.Locker, op, ns.ID, s.lock)
	if err != nil {
		return nil, err
	}
	defer releaseLock(s.deps.Locker, s.log, lease)

	var out *types.Namespace
	err = s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			return domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
		}
		switch cur.Status {
		case domain.NamespaceStatusCorrupted:
			out = cur
			return nil
		case domain.NamespaceStatusActive:
		default:
			return domain.NewError(domain.CodeNotActive, op, "namespace is "+cur.Status, nil)
		}
		now := s.deps.now()
		if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
			"status":     domain.NamespaceStatusCorrupted,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if err := appendEvent(dbc, s.deps.Events, cur, domain.EventNamespaceCorrupted, map[string]any{
			"reason": reason,
		}, cur.CurrentCheckpointHash); err != nil {
			return err
		}
		cur.Status = domain.NamespaceStatusCorrupted
		cur.UpdatedAt = now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AcknowledgeVersion records that downstream consumers reconciled up to version.
// Acknowledgements never move backwards; a stale one is a no-op.
func (s *namespaceService) AcknowledgeVersion(ctx context.Context, ownerID string, version int64) (*types.Namespace, error) {
	const op = "namespace.ack"
	if version < 1 {
		return nil, domain.NewError(domain.CodeValidation, op, "version must be >= 1", nil)
	}
	ns, err := s.GetNamespace(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		return nil, domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
	}
	var out *types.Namespace
	err = s.deps.base().Write(ctx, op, func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status == domain.NamespaceStatusDeleted {
			return domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
		}
		if version > cur.VersionCount {
			return domain.NewError(domain.CodeValidation, op, "version is ahead of the namespace", nil)
		}
		out = cur
		if version <= cur.ReconciledVersion {
			return nil
		}
		if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
			"reconciled_version": version,
			"updated_at":         s.deps.now(),
		}); err != nil {
			return err
		}
		if err := appendEvent(dbc, s.deps.Events, cur, domain.EventVersionAcknowledged, map[string]any{
			"version":          version,
			"previous_version": cur.ReconciledVersion,
		}, cur.CurrentCheckpointHash); err != nil {
			return err
		}
		cur.ReconciledVersion = version
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents reads the audit trail newest first. Tombstoned namespaces keep their history.
func (s *namespaceService) ListEvents(ctx context.Context, ownerID, eventType string, limit int) ([]*types.EventLogEntry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ns, err := s.deps.Namespaces.GetLatestByOwner(dbc, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "namespace.events", err)
	}
	if ns == nil {
		return []*types.EventLogEntry{}, nil
	}
	out, err := s.deps.Events.List(dbc, ns.ID, strings.TrimSpace(eventType), limit)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "namespace.events", err)
	}
	return out, nil
}
