package namespaces

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// EventLogRepo is append-only. There is intentionally no update or delete.
type EventLogRepo interface {
	Append(dbc dbctx.Context, entry *types.EventLogEntry) error
	List(dbc dbctx.Context, namespaceID uuid.UUID, eventType string, limit int) ([]*types.EventLogEntry, error)
	CountByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error)
	CountTotal(dbc dbctx.Context) (int64, error)
	LastAt(dbc dbctx.Context, namespaceID uuid.UUID) (*time.Time, error)
}

const (
	DefaultEventListLimit = 100
	MaxEventListLimit     = 1000
)

type eventLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventLogRepo(db *gorm.DB, baseLog *logger.Logger) EventLogRepo {
	return &eventLogRepo{
		db:  db,
		log: baseLog.With("repo", "EventLogRepo"),
	}
}

// Append assigns the next per-namespace sequence number and inserts the entry.
// Callers run it in the same transaction as the mutation it records, after the namespace row is locked.
func (r *eventLogRepo) Append(dbc dbctx.Context, entry *types.EventLogEntry) error {
	if entry == nil {
		return nil
	}
	if entry.NamespaceID == uuid.Nil {
		return errors.New("event log: namespace_id required")
	}
	if entry.EventType == "" {
		return errors.New("event log: event_type required")
	}
	transaction := dbc.DB(r.db)

	var maxSeq int64
	if err := transaction.
		Model(&types.EventLogEntry{}).
		Where("namespace_id = ?", entry.NamespaceID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	entry.Seq = maxSeq + 1

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = ctxutil.Actor(dbc.Ctx)
	}
	if len(entry.EventData) == 0 {
		entry.EventData = datatypes.JSON([]byte(`{}`))
	}
	return transaction.Create(entry).Error
}

// List returns entries newest first, ordered by (created_at, seq).
func (r *eventLogRepo) List(dbc dbctx.Context, namespaceID uuid.UUID, eventType string, limit int) ([]*types.EventLogEntry, error) {
	if namespaceID == uuid.Nil {
		return []*types.EventLogEntry{}, nil
	}
	if limit <= 0 {
		limit = DefaultEventListLimit
	}
	if limit > MaxEventListLimit {
		limit = MaxEventListLimit
	}
	q := dbc.DB(r.db).Where("namespace_id = ?", namespaceID)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var out []*types.EventLogEntry
	if err := q.Order("created_at DESC, seq DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventLogRepo) CountByNamespace(dbc dbctx.Context, namespaceID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.EventLogEntry{}).Where("namespace_id = ?", namespaceID).Count(&n).Error
	return n, err
}

func (r *eventLogRepo) CountTotal(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.EventLogEntry{}).Count(&n).Error
	return n, err
}

func (r *eventLogRepo) LastAt(dbc dbctx.Context, namespaceID uuid.UUID) (*time.Time, error) {
	var last types.EventLogEntry
	err := dbc.DB(r.db).
		Where("namespace_id = ?", namespaceID).
		Order("seq DESC").
		Limit(1).
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := last.CreatedAt
	return &at, nil
}
