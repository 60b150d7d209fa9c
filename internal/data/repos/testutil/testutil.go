package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/namespace-orchestrator/internal/data/db"
	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg = logger.Nop()
	})
	return logg
}

// DB returns a fresh, migrated in-memory SQLite database private to the calling test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:nsorch_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	gdb, err := db.OpenSQLite(dsn, nil)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// SeedNamespace inserts an active namespace for ownerID at version 1.
func SeedNamespace(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID string) *types.Namespace {
	tb.Helper()
	now := time.Now().UTC()
	ns := &types.Namespace{
		ID:                    uuid.New(),
		OwnerID:               ownerID,
		Status:                domain.NamespaceStatusActive,
		BaseVersion:           "1.0",
		CurrentCheckpointHash: "ckpt_0123456789abcdef",
		VersionCount:          1,
		ReconciledVersion:     1,
		EncryptionKeyHash:     "ekh_test",
		Metadata:              datatypes.JSON([]byte(`{"schema_version":1}`)),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := tx.WithContext(ctx).Create(ns).Error; err != nil {
		tb.Fatalf("seed namespace: %v", err)
	}
	return ns
}

func SeedMergeOperation(tb testing.TB, ctx context.Context, tx *gorm.DB, ns *types.Namespace, status string, createdAt time.Time) *types.MergeOperation {
	tb.Helper()
	op := &types.MergeOperation{
		ID:                   uuid.New(),
		NamespaceID:          ns.ID,
		OperationType:        domain.MergeTypeManual,
		Status:               status,
		SourceCheckpointHash: ns.CurrentCheckpointHash,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}
	if err := tx.WithContext(ctx).Create(op).Error; err != nil {
		tb.Fatalf("seed merge operation: %v", err)
	}
	return op
}

func SeedFallbackOperation(tb testing.TB, ctx context.Context, tx *gorm.DB, ns *types.Namespace, status string, at time.Time) *types.FallbackOperation {
	tb.Helper()
	op := &types.FallbackOperation{
		ID:          uuid.New(),
		NamespaceID: ns.ID,
		Reason:      domain.FallbackReasonManualRequest,
		Status:      status,
		EnqueuedAt:  at,
		UpdatedAt:   at,
	}
	if err := tx.WithContext(ctx).Create(op).Error; err != nil {
		tb.Fatalf("seed fallback operation: %v", err)
	}
	return op
}
