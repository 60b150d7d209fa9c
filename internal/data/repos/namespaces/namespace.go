package namespaces

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type NamespaceRepo interface {
	Create(dbc dbctx.Context, ns *types.Namespace) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Namespace, error)
	GetLiveByOwner(dbc dbctx.Context, ownerID string) (*types.Namespace, error)
	GetLatestByOwner(dbc dbctx.Context, ownerID string) (*types.Namespace, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Namespace, error)
	List(dbc dbctx.Context, filter types.ListFilter) ([]*types.Namespace, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsIfVersion(dbc dbctx.Context, id uuid.UUID, expectedVersion int64, updates map[string]interface{}) (bool, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
	ListPurgeable(dbc dbctx.Context, tombstonedBefore time.Time, limit int) ([]*types.Namespace, error)
}

type namespaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNamespaceRepo(db *gorm.DB, baseLog *logger.Logger) NamespaceRepo {
	return &namespaceRepo{
		db:  db,
		log: baseLog.With("repo", "NamespaceRepo"),
	}
}

func (r *namespaceRepo) Create(dbc dbctx.Context, ns *types.Namespace) error {
	if ns == nil {
		return nil
	}
	return dbc.DB(r.db).Create(ns).Error
}

func (r *namespaceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Namespace, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).Where("id = ?", id))
}

// GetLiveByOwner returns the owner's non-deleted namespace, or nil.
func (r *namespaceRepo) GetLiveByOwner(dbc dbctx.Context, ownerID string) (*types.Namespace, error) {
	if ownerID == "" {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).
		Where("owner_id = ? AND status <> ?", ownerID, domain.NamespaceStatusDeleted).
		Order("created_at DESC"))
}

// GetLatestByOwner includes tombstones, so audit history stays readable after deletion.
func (r *namespaceRepo) GetLatestByOwner(dbc dbctx.Context, ownerID string) (*types.Namespace, error) {
	if ownerID == "" {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC"))
}

// LockByID reads the row with FOR UPDATE when the dialect supports it (SQLite ignores the clause
// and serializes writers instead). Must be called inside a transaction.
func (r *namespaceRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Namespace, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *namespaceRepo) first(q *gorm.DB) (*types.Namespace, error) {
	var ns types.Namespace
	err := q.Limit(1).Take(&ns).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

func (r *namespaceRepo) List(dbc dbctx.Context, filter types.ListFilter) ([]*types.Namespace, error) {
	filter = filter.Normalized()
	q := dbc.DB(r.db).Model(&types.Namespace{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	} else {
		q = q.Where("status <> ?", domain.NamespaceStatusDeleted)
	}
	var out []*types.Namespace
	if err := q.Order("created_at ASC, id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *namespaceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.Namespace{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsIfVersion applies updates only while version_count still equals expectedVersion.
// It reports false when another writer advanced the version first.
func (r *namespaceRepo) UpdateFieldsIfVersion(dbc dbctx.Context, id uuid.UUID, expectedVersion int64, updates map[string]interface{}) (bool, error) {
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
		Model(&types.Namespace{}).
		Where("id = ? AND version_count = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *namespaceRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	return countByStatus(dbc.DB(r.db).Model(&types.Namespace{}))
}

// ListPurgeable returns tombstoned namespaces whose child rows have not been purged yet.
func (r *namespaceRepo) ListPurgeable(dbc dbctx.Context, tombstonedBefore time.Time, limit int) ([]*types.Namespace, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Namespace
	err := dbc.DB(r.db).
		Where("status = ? AND purged_at IS NULL AND tombstoned_at IS NOT NULL AND tombstoned_at < ?",
			domain.NamespaceStatusDeleted, tombstonedBefore).
		Order("tombstoned_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type statusCount struct {
	Status string
	Count  int64
}

func countByStatus(q *gorm.DB) (map[string]int64, error) {
	var rows []statusCount
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
