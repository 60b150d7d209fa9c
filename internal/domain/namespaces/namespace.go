package namespaces

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	NamespaceStatusActive    = "active"
	NamespaceStatusCorrupted = "corrupted"
	NamespaceStatusDeleting  = "deleting"
	NamespaceStatusDeleted   = "deleted"
)

// Namespace is the isolated personalization state of one owner (learner).
// At most one non-deleted row exists per OwnerID; deleted rows stay behind as tombstones.
type Namespace struct {
	ID                     uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID                string         `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Status                 string         `gorm:"column:status;not null;index" json:"status"`
	BaseVersion            string         `gorm:"column:base_version;not null" json:"base_version"`
	CurrentCheckpointHash  string         `gorm:"column:current_checkpoint_hash;not null" json:"current_checkpoint_hash"`
	VersionCount           int64          `gorm:"column:version_count;not null;default:1" json:"version_count"`
	ReconciledVersion      int64          `gorm:"column:reconciled_version;not null;default:0" json:"reconciled_version"`
	CheckpointSizeBytes    int64          `gorm:"column:checkpoint_size_bytes;not null;default:0" json:"checkpoint_size_bytes"`
	EncryptionKeyHash      string         `gorm:"column:encryption_key_hash;not null" json:"encryption_key_hash"`
	Metadata               datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	GuardianProtectedUntil *time.Time     `gorm:"column:guardian_protected_until" json:"guardian_protected_until,omitempty"`
	LastMergeAt            *time.Time     `gorm:"column:last_merge_at" json:"last_merge_at,omitempty"`
	TombstonedAt           *time.Time     `gorm:"column:tombstoned_at;index" json:"tombstoned_at,omitempty"`
	PurgedAt               *time.Time     `gorm:"column:purged_at" json:"purged_at,omitempty"`
	CreatedAt              time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (Namespace) TableName() string { return "namespace" }

// IsProtected reports whether guardian protection blocks deletion at now.
func (n *Namespace) IsProtected(now time.Time) bool {
	return n != nil && n.GuardianProtectedUntil != nil && n.GuardianProtectedUntil.After(now)
}

// VersionLag is the number of version increments downstream consumers have not acknowledged.
func (n *Namespace) VersionLag() int64 {
	if n == nil || n.VersionCount <= n.ReconciledVersion {
		return 0
	}
	return n.VersionCount - n.ReconciledVersion
}

func IsKnownNamespaceStatus(s string) bool {
	switch s {
	case NamespaceStatusActive, NamespaceStatusCorrupted, NamespaceStatusDeleting, NamespaceStatusDeleted:
		return true
	default:
		return false
	}
}

// CheckpointPrefix marks opaque checkpoint content identifiers.
const CheckpointPrefix = "ckpt_"

var checkpointPattern = regexp.MustCompile(`^ckpt_[0-9a-f]{8,128}$`)

func IsCheckpointHash(s string) bool { return checkpointPattern.MatchString(s) }

// ListFilter pages through namespaces. Deleted namespaces are only listed when asked for by status.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Tombstone is published after a namespace is deleted so external cleanup can reclaim child resources.
type Tombstone struct {
	NamespaceID    uuid.UUID `json:"namespace_id"`
	OwnerID        string    `json:"owner_id"`
	CheckpointHash string    `json:"checkpoint_hash"`
	VersionCount   int64     `json:"version_count"`
	Forced         bool      `json:"forced"`
	DeletedAt      time.Time `json:"deleted_at"`
}
