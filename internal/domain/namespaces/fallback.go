package namespaces

import (
	"time"

	"github.com/google/uuid"
)

const (
	FallbackReasonCorruptionDetected = "CORRUPTION_DETECTED"
	FallbackReasonMergeFailure       = "MERGE_FAILURE"
	FallbackReasonManualRequest      = "MANUAL_REQUEST"
)

const (
	FallbackStatusQueued    = "queued"
	FallbackStatusRunning   = "running"
	FallbackStatusCompleted = "completed"
	FallbackStatusFailed    = "failed"
)

func IsKnownFallbackReason(s string) bool {
	switch s {
	case FallbackReasonCorruptionDetected, FallbackReasonMergeFailure, FallbackReasonManualRequest:
		return true
	default:
		return false
	}
}

// FallbackOperation is the durable receipt behind a queued fallback request.
// The queue carries only FallbackItem; consumption claims this row so each id runs once.
type FallbackOperation struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	NamespaceID     uuid.UUID  `gorm:"type:uuid;column:namespace_id;not null;index" json:"namespace_id"`
	Reason          string     `gorm:"column:reason;not null" json:"reason"`
	FallbackVersion *string    `gorm:"column:fallback_version" json:"fallback_version,omitempty"`
	Status          string     `gorm:"column:status;not null;index" json:"status"`
	ErrorMessage    string     `gorm:"column:error_message" json:"error_message,omitempty"`
	EnqueuedAt      time.Time  `gorm:"column:enqueued_at;not null;index" json:"enqueued_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

func (FallbackOperation) TableName() string { return "fallback_operation" }

// FallbackItem is the queue payload.
type FallbackItem struct {
	OperationID     uuid.UUID `json:"operation_id"`
	NamespaceID     uuid.UUID `json:"namespace_id"`
	Reason          string    `json:"reason"`
	FallbackVersion *string   `json:"fallback_version,omitempty"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}
