package namespaces

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/namespace-orchestrator/internal/data/repos/testutil"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
)

func TestFallbackOperationRepoQueuedCutoff(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewFallbackOperationRepo(db, testutil.Logger(t))
	ns := testutil.SeedNamespace(t, ctx, db, "L1")
	now := time.Now().UTC()
	old := testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusQueued, now.Add(-time.Hour))
	fresh := testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusQueued, now)
	testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusCompleted, now.Add(-2*time.Hour))

	got, err := repo.ListQueued(dbctx.Context{Ctx: ctx}, now.Add(-30*time.Minute), 0)
	if err != nil {
		t.Fatalf("ListQueued cutoff: %v", err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Fatalf("queued before cutoff: want=[%s] got=%v", old.ID, got)
	}
	all, err := repo.ListQueued(dbctx.Context{Ctx: ctx}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListQueued all: %v", err)
	}
	if len(all) != 2 || all[0].ID != old.ID || all[1].ID != fresh.ID {
		t.Fatalf("queued: want=[%s %s] got=%v", old.ID, fresh.ID, all)
	}
}

func TestFallbackOperationRepoStaleRunning(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewFallbackOperationRepo(db, testutil.Logger(t))
	ns := testutil.SeedNamespace(t, ctx, db, "L1")
	now := time.Now().UTC()
	stale := testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusRunning, now.Add(-time.Hour))
	testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusRunning, now)
	testutil.SeedFallbackOperation(t, ctx, db, ns, domain.FallbackStatusQueued, now.Add(-time.Hour))

	got, err := repo.ListStaleRunning(dbctx.Context{Ctx: ctx}, now.Add(-30*time.Minute), 0)
	if err != nil {
		t.Fatalf("ListStaleRunning: %v", err)
	}
	if len(got) != 1 || got[0].ID != stale.ID {
		t.Fatalf("stale running: want=[%s] got=%v", stale.ID, got)
	}
	if open, err := repo.HasOpen(dbctx.Context{Ctx: ctx}, ns.ID); err != nil || !open {
		t.Fatalf("HasOpen: want=true got=%v err=%v", open, err)
	}
}
