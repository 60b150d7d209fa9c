package namespaces

import (
	"context"
	"testing"

	"github.com/yungbote/namespace-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
)

func TestEventLogAppendAssignsMonotonicSeq(t *testing.T) {
	db := testutil.DB(t)
	ctx := ctxutil.WithActor(context.Background(), "tester")
	repo := NewEventLogRepo(db, testutil.Logger(t))
	ns := testutil.SeedNamespace(t, ctx, db, "L1")
	other := testutil.SeedNamespace(t, ctx, db, "L2")

	for i := 0; i < 3; i++ {
		if err := repo.Append(dbctx.Context{Ctx: ctx}, &types.EventLogEntry{
			NamespaceID: ns.ID, OwnerID: ns.OwnerID, EventType: domain.EventMergeTriggered,
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	otherEntry := &types.EventLogEntry{NamespaceID: other.ID, OwnerID: other.OwnerID, EventType: domain.EventNamespaceCreated}
	if err := repo.Append(dbctx.Context{Ctx: ctx}, otherEntry); err != nil {
		t.Fatalf("append other: %v", err)
	}
	if otherEntry.Seq != 1 {
		t.Fatalf("seq is per namespace: want=1 got=%d", otherEntry.Seq)
	}

	entries, err := repo.List(dbctx.Context{Ctx: ctx}, ns.ID, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries: want=3 got=%d", len(entries))
	}
	for i, want := range []int64{3, 2, 1} {
		if entries[i].Seq != want {
			t.Fatalf("entries[%d].Seq: want=%d got=%d", i, want, entries[i].Seq)
		}
		if entries[i].CreatedBy != "tester" {
			t.Fatalf("created_by: want=tester got=%q", entries[i].CreatedBy)
		}
	}
}

func TestEventLogListFiltersByType(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewEventLogRepo(db, testutil.Logger(t))
	ns := testutil.SeedNamespace(t, ctx, db, "L1")
	for _, et := range []string{domain.EventNamespaceCreated, domain.EventMergeTriggered, domain.EventMergeCompleted} {
		if err := repo.Append(dbctx.Context{Ctx: ctx}, &types.EventLogEntry{NamespaceID: ns.ID, OwnerID: ns.OwnerID, EventType: et}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := repo.List(dbctx.Context{Ctx: ctx}, ns.ID, domain.EventMergeCompleted, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventType != domain.EventMergeCompleted {
		t.Fatalf("filtered: got=%v", got)
	}
	if got[0].CreatedBy != ctxutil.ActorSystem {
		t.Fatalf("default actor: want=%s got=%s", ctxutil.ActorSystem, got[0].CreatedBy)
	}
	n, _ := repo.CountByNamespace(dbctx.Context{Ctx: ctx}, ns.ID)
	if n != 3 {
		t.Fatalf("count: want=3 got=%d", n)
	}
	last, err := repo.LastAt(dbctx.Context{Ctx: ctx}, ns.ID)
	if err != nil || last == nil {
		t.Fatalf("LastAt: last=%v err=%v", last, err)
	}
}

func TestEventLogAppendRejectsMissingFields(t *testing.T) {
	db := testutil.DB(t)
	repo := NewEventLogRepo(db, testutil.Logger(t))
	if err := repo.Append(dbctx.Context{Ctx: context.Background()}, &types.EventLogEntry{EventType: "x"}); err == nil {
		t.Fatalf("missing namespace: want error got nil")
	}
}
