package services

import (
	"context"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// TombstoneNotifier hands deletion records to external cleanup.
type TombstoneNotifier interface {
	NotifyTombstone(ctx context.Context, t types.Tombstone) error
}

type TombstoneNotifierFunc func(ctx context.Context, t types.Tombstone) error

func (f TombstoneNotifierFunc) NotifyTombstone(ctx context.Context, t types.Tombstone) error {
	return f(ctx, t)
}

type logTombstoneNotifier struct {
	log *logger.Logger
}

// NewLogTombstoneNotifier is used when no bus is configured; the deleted row itself stays as the tombstone.
func NewLogTombstoneNotifier(baseLog *logger.Logger) TombstoneNotifier {
	return &logTombstoneNotifier{log: baseLog.With("notifier", "tombstone")}
}

func (n *logTombstoneNotifier) NotifyTombstone(_ context.Context, t types.Tombstone) error {
	n.log.Info("namespace tombstoned",
		"namespace_id", t.NamespaceID,
		"owner_id", t.OwnerID,
		"checkpoint_hash", t.CheckpointHash,
		"version_count", t.VersionCount,
		"forced", t.Forced,
	)
	return nil
}
