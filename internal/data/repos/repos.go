package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/namespace-orchestrator/internal/data/repos/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type NamespaceRepo = namespaces.NamespaceRepo
type MergeOperationRepo = namespaces.MergeOperationRepo
type FallbackOperationRepo = namespaces.FallbackOperationRepo
type EventLogRepo = namespaces.EventLogRepo

func NewNamespaceRepo(db *gorm.DB, baseLog *logger.Logger) NamespaceRepo {
	return namespaces.NewNamespaceRepo(db, baseLog)
}
func NewMergeOperationRepo(db *gorm.DB, baseLog *logger.Logger) MergeOperationRepo {
	return namespaces.NewMergeOperationRepo(db, baseLog)
}
func NewFallbackOperationRepo(db *gorm.DB, baseLog *logger.Logger) FallbackOperationRepo {
	return namespaces.NewFallbackOperationRepo(db, baseLog)
}
func NewEventLogRepo(db *gorm.DB, baseLog *logger.Logger) EventLogRepo {
	return namespaces.NewEventLogRepo(db, baseLog)
}
