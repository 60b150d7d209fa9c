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

type FallbackOperationRepo interface {
	Create(dbc dbctx.Context, op *types.FallbackOperation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FallbackOperation, error)
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatus string, updates map[string]interface{}) (bool, error)
	ListQueued(dbc dbctx.Context, enqueuedBefore time.Time, limit int) ([]*types.FallbackOperation, error)
	ListStaleRunning(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.FallbackOperation, error)
	CountByStatus(dbc dbctx.Context, namespaceID *uuid.UUID) (map[string]int64, error)
	HasOpen(dbc dbctx.Context, namespaceID uuid.UUID) (bool, error)
	DeleteByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error)
}

type fallbackOperationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFallbackOperationRepo(db *gorm.DB, baseLog *logger.Logger) FallbackOperationRepo {
	return &fallbackOperationRepo{
		db:  db,
		log: baseLog.With("repo", "FallbackOperationRepo"),
	}
}

func (r *fallbackOperationRepo) Create(dbc dbctx.Context, op *types.FallbackOperation) error {
	if op == nil {
		return nil
	}
	return dbc.DB(r.db).Create(op).Error
}

func (r *fallbackOperationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FallbackOperation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var op types.FallbackOperation
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Take(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// UpdateFieldsIfStatus doubles as the consumption claim: queued -> running succeeds for exactly one caller.
func (r *fallbackOperationRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, expectedStatus string, updates map[string]interface{}) (bool, error) {
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
		Model(&types.FallbackOperation{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListQueued returns receipts still waiting for a consumer, oldest first.
// A zero enqueuedBefore returns every queued receipt.
func (r *fallbackOperationRepo) ListQueued(dbc dbctx.Context, enqueuedBefore time.Time, limit int) ([]*types.FallbackOperation, error) {
	if limit <= 0 {
		limit = 500
	}
	q := dbc.DB(r.db).Where("status = ?", domain.FallbackStatusQueued)
	if !enqueuedBefore.IsZero() {
		q = q.Where("enqueued_at < ?", enqueuedBefore)
	}
	var out []*types.FallbackOperation
	if err := q.Order("enqueued_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStaleRunning returns claimed receipts last touched before olderThan.
func (r *fallbackOperationRepo) ListStaleRunning(dbc dbctx.Context, olderThan time.Time, limit int) ([]*types.FallbackOperation, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []*types.FallbackOperation
	if err := dbc.DB(r.db).
		Where("status = ? AND updated_at < ?", domain.FallbackStatusRunning, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fallbackOperationRepo) CountByStatus(dbc dbctx.Context, namespaceID *uuid.UUID) (map[string]int64, error) {
	q := dbc.DB(r.db).Model(&types.FallbackOperation{})
	if namespaceID != nil {
		q = q.Where("namespace_id = ?", *namespaceID)
	}
	return countByStatus(q)
}

func (r *fallbackOperationRepo) HasOpen(dbc dbctx.Context, namespaceID uuid.UUID) (bool, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.FallbackOperation{}).
		Where("namespace_id = ? AND status IN ?", namespaceID,
			[]string{domain.FallbackStatusQueued, domain.FallbackStatusRunning}).
		Count(&n).Error
	return n > 0, err
}

func (r *fallbackOperationRepo) DeleteByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error) {
	if namespaceID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("namespace_id = ?", namespaceID).Delete(&types.FallbackOperation{})
	return res.RowsAffected, res.Error
}
