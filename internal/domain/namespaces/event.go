package namespaces

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventNamespaceCreated    = "namespace_created"
	EventNamespaceDeleted    = "namespace_deleted"
	EventNamespaceCorrupted  = "namespace_corrupted"
	EventNamespacePurged     = "namespace_purged"
	EventVersionAcknowledged = "version_acknowledged"

	EventMergeTriggered = "merge_triggered"
	EventMergeStarted   = "merge_started"
	EventMergeCompleted = "merge_completed"
	EventMergeFailed    = "merge_failed"

	EventFallbackInitiated = "fallback_initiated"
	EventFallbackCompleted = "fallback_completed"
	EventFallbackFailed    = "fallback_failed"
)

// EventLogEntry is an immutable audit record. Seq is a per-namespace monotonic counter
// assigned inside the transaction that performs the mutation the entry describes.
type EventLogEntry struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	NamespaceID    uuid.UUID      `gorm:"type:uuid;column:namespace_id;not null;uniqueIndex:idx_namespace_event_seq,priority:1" json:"namespace_id"`
	Seq            int64          `gorm:"column:seq;not null;uniqueIndex:idx_namespace_event_seq,priority:2" json:"seq"`
	OwnerID        string         `gorm:"column:owner_id;not null;index" json:"owner_id"`
	EventType      string         `gorm:"column:event_type;not null;index" json:"event_type"`
	EventData      datatypes.JSON `gorm:"column:event_data;type:jsonb" json:"event_data"`
	CheckpointHash *string        `gorm:"column:checkpoint_hash" json:"checkpoint_hash,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	CreatedBy      string         `gorm:"column:created_by;not null" json:"created_by"`
}

func (EventLogEntry) TableName() string { return "namespace_event" }
