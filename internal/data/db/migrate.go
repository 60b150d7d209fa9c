package db

import (
	"fmt"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Namespace{},
		&types.MergeOperation{},
		&types.FallbackOperation{},
		&types.EventLogEntry{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return EnsureNamespaceIndexes(db)
}

// EnsureNamespaceIndexes creates the partial indexes AutoMigrate cannot express.
// The statements are valid for both Postgres and SQLite.
func EnsureNamespaceIndexes(db *gorm.DB) error {
	// exactly one live namespace per owner; deleted rows remain as tombstones
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_namespace_owner_live
		ON namespace (owner_id)
		WHERE status <> 'deleted';
	`).Error; err != nil {
		return fmt.Errorf("create idx_namespace_owner_live: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_merge_operation_ns_created
		ON merge_operation (namespace_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_merge_operation_ns_created: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_namespace_event_ns_type
		ON namespace_event (namespace_id, event_type, seq);
	`).Error; err != nil {
		return fmt.Errorf("create idx_namespace_event_ns_type: %w", err)
	}
	return nil
}
