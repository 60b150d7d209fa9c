package namespaces

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type MergeOperationRepo interface {
	Create(dbc dbctx.Context, op *types.MergeOperation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MergeOperation, error)
	ListByNamespace(dbc dbctx.Context, namespaceID uuid.UUID, limit int) ([]*types.MergeOperation, error)
	ListByNamespaceSince(dbc dbctx.Context, namespaceID uuid.UUID, statuses []string, since time.Time) ([]*types.MergeOperation, error)
	ListStale(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.MergeOperation, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatus string, updates map[string]interface{}) (bool, error)
	CountByStatus(dbc dbctx.Context, namespaceID *uuid.UUID) (map[string]int64, error)
	CountByNamespaceStatusSince(dbc dbctx.Context, namespaceID uuid.UUID, status string, since time.Time) (int64, error)
	DeleteByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error)
}

type mergeOperationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMergeOperationRepo(db *gorm.DB, baseLog *logger.Logger) MergeOperationRepo {
	return &mergeOperationRepo{
		db:  db,
		log: baseLog.With("repo", "MergeOperationRepo"),
	}
}

func (r *mergeOperationRepo) Create(dbc dbctx.Context, op *types.MergeOperation) error {
	if op == nil {
		return nil
	}
	return dbc.DB(r.db).Create(op).Error
}

func (r *mergeOperationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MergeOperation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var op types.MergeOperation
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// ListByNamespace returns merge history newest first.
func (r *mergeOperationRepo) ListByNamespace(dbc dbctx.Context, namespaceID uuid.UUID, limit int) ([]*types.MergeOperation, error) {
	if namespaceID == uuid.Nil {
		return []*types.MergeOperation{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.MergeOperation
	if err := dbc.DB(r.db).
		Where("namespace_id = ?", namespaceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *mergeOperationRepo) ListByNamespaceSince(dbc dbctx.Context, namespaceID uuid.UUID, statuses []string, since time.Time) ([]*types.MergeOperation, error) {
	if namespaceID == uuid.Nil {
		return []*types.MergeOperation{}, nil
	}
	q := dbc.DB(r.db).Where("namespace_id = ? AND created_at >= ?", namespaceID, since)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*types.MergeOperation
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStale returns non-terminal operations last touched before olderThan.
func (r *mergeOperationRepo) ListStale(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.MergeOperation, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []*types.MergeOperation
	if err := dbc.DB(r.db).
		Where("status IN ? AND updated_at < ?",
			[]string{domain.MergeStatusPending, domain.MergeStatusRunning}, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFieldsIfStatus is the state-machine guard: the row only moves when it is still in expectedStatus.
func (r *mergeOperationRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatus string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.MergeOperation{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *mergeOperationRepo) CountByStatus(dbc dbctx.Context, namespaceID *uuid.UUID) (map[string]int64, error) {
	q := dbc.DB(r.db).Model(&types.MergeOperation{})
	if namespaceID != nil {
		q = q.Where("namespace_id = ?", *namespaceID)
	}
	return countByStatus(q)
}

func (r *mergeOperationRepo) CountByNamespaceStatusSince(dbc dbctx.Context, namespaceID uuid.UUID, status string, since time.Time) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.MergeOperation{}).
		Where("namespace_id = ? AND status = ? AND created_at >= ?", namespaceID, status, since).
		Count(&n).Error
	return n, err
}

func (r *mergeOperationRepo) DeleteByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error) {
	if namespaceID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("namespace_id = ?", namespaceID).Delete(&types.MergeOperation{})
	return res.RowsAffected, res.Error
}
