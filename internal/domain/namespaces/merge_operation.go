package namespaces

import (
	"time"

	"github.com/google/uuid"
)

const (
	MergeTypeManual    = "manual"
	MergeTypeScheduled = "scheduled"
	MergeTypeNightly   = "nightly"
)

const (
	MergeStatusPending   = "pending"
	MergeStatusRunning   = "running"
	MergeStatusCompleted = "completed"
	MergeStatusFailed    = "failed"
)

// MergeOperation records one merge attempt. Terminal statuses are never left.
type MergeOperation struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	NamespaceID          uuid.UUID  `gorm:"type:uuid;column:namespace_id;not null;index" json:"namespace_id"`
	OperationType        string     `gorm:"column:operation_type;not null" json:"operation_type"`
	Status               string     `gorm:"column:status;not null;index" json:"status"`
	SourceCheckpointHash string     `gorm:"column:source_checkpoint_hash;not null" json:"source_checkpoint_hash"`
	TargetCheckpointHash *string    `gorm:"column:target_checkpoint_hash" json:"target_checkpoint_hash,omitempty"`
	ErrorMessage         string     `gorm:"column:error_message" json:"error_message,omitempty"`
	StartedAt            *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt          *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt            time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null;index" json:"updated_at"`
}

func (MergeOperation) TableName() string { return "merge_operation" }

func (m *MergeOperation) IsTerminal() bool {
	return m != nil && IsTerminalMergeStatus(m.Status)
}

func IsTerminalMergeStatus(s string) bool {
	return s == MergeStatusCompleted || s == MergeStatusFailed
}

func IsKnownMergeType(s string) bool {
	switch s {
	case MergeTypeManual, MergeTypeScheduled, MergeTypeNightly:
		return true
	default:
		return false
	}
}
