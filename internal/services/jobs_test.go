package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
)

func TestRunNightlyMerge(t *testing.T) {
	f := newFixture(t, fixtureOpts{jobs: JobsPolicy{NightlyConcurrency: 2, PageSize: 1}})
	f.create(t, "L1")
	f.create(t, "L2")
	f.create(t, "L3")
	if _, err := f.merges.RunMerge(f.ctx, "L2", "", false); err != nil {
		t.Fatalf("prior merge: %v", err)
	}
	if _, err := f.namespaces.MarkCorrupted(f.ctx, "L3", "test"); err != nil {
		t.Fatalf("mark corrupted: %v", err)
	}

	res, err := f.jobs.RunNightlyMerge(f.ctx)
	if err != nil {
		t.Fatalf("nightly: %v", err)
	}
	if res.Processed != 2 || res.Succeeded != 1 || res.Skipped != 1 || res.Failed != 0 {
		t.Fatalf("result: want processed=2 succeeded=1 skipped=1 got=%+v", res)
	}
	if res.Details[string(domain.CodeTooRecent)] != 1 {
		t.Fatalf("details: want too_recent=1 got=%v", res.Details)
	}
	if v := f.reload(t, "L1").VersionCount; v != 2 {
		t.Fatalf("L1 version: want=2 got=%d", v)
	}
	ops, _ := f.merges.ListMergeOperations(f.ctx, "L1")
	if len(ops) != 1 || ops[0].OperationType != domain.MergeTypeNightly {
		t.Fatalf("L1 operations: want one nightly got=%v", ops)
	}
}

func TestRunHealthSweepQuarantinesAndRecovers(t *testing.T) {
	hasher := NewCheckpointHasher("test-master-key")
	inner := NewHashMergeExecutor(hasher)
	exec := MergeExecutorFunc(func(ctx context.Context, in MergeInput) (MergeResult, error) {
		if in.OwnerID == "L2" {
			return MergeResult{}, errExecutor
		}
		return inner.Execute(ctx, in)
	})
	policy := DefaultHealthPolicy()
	policy.CorruptionThreshold = 0.6
	f := newFixture(t, fixtureOpts{
		mergeExec: exec,
		health:    &policy,
		jobs:      JobsPolicy{StaleAfter: time.Hour},
	})
	f.create(t, "L1")
	f.create(t, "L2")
	for i := 0; i < 3; i++ {
		_, _ = f.merges.RunMerge(f.ctx, "L2", "", true)
	}
	stuck, _ := f.merges.TriggerMerge(f.ctx, "L1", "", false)
	if _, err := f.deps.Merges.UpdateFieldsIfStatus(dbctx.Context{Ctx: f.ctx}, stuck.ID, domain.MergeStatusPending, map[string]interface{}{
		"status":     domain.MergeStatusRunning,
		"updated_at": f.clock.Now(),
	}); err != nil {
		t.Fatalf("force running: %v", err)
	}
	f.clock.Advance(2 * time.Hour)

	res, err := f.jobs.RunHealthSweep(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Details["stale_failed"] != 1 {
		t.Fatalf("stale_failed: want=1 got=%v", res.Details)
	}
	if res.Processed != 2 || res.Details["corrupted"] != 1 {
		t.Fatalf("result: want processed=2 corrupted=1 got=%+v", res)
	}
	if s := f.reload(t, "L1").Status; s != domain.NamespaceStatusActive {
		t.Fatalf("L1: want active got=%s", s)
	}
	if s := f.reload(t, "L2").Status; s != domain.NamespaceStatusCorrupted {
		t.Fatalf("L2: want corrupted got=%s", s)
	}
	if depth, _ := f.fallbacks.QueueDepth(f.ctx); depth != 1 {
		t.Fatalf("queue depth: want=1 got=%d", depth)
	}

	f.drain(t)
	if s := f.reload(t, "L2").Status; s != domain.NamespaceStatusActive {
		t.Fatalf("L2 after fallback: want active got=%s", s)
	}
	events, _ := f.namespaces.ListEvents(f.ctx, "L2", domain.EventFallbackInitiated, 0)
	if len(events) != 1 {
		t.Fatalf("fallback_initiated: want=1 got=%d", len(events))
	}
}

func TestRunCleanupPurgesOperationsKeepsEvents(t *testing.T) {
	f := newFixture(t, fixtureOpts{jobs: JobsPolicy{CleanupRetention: 24 * time.Hour}})
	f.create(t, "L1")
	f.create(t, "L2")
	if _, err := f.merges.RunMerge(f.ctx, "L1", "", false); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := f.fallbacks.InitiateFallbackRecovery(f.ctx, "L1", domain.FallbackReasonManualRequest, nil); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	f.drain(t)
	if _, err := f.namespaces.DeleteNamespace(f.ctx, "L1", false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	before, _ := f.namespaces.ListEvents(f.ctx, "L1", "", 0)

	res, err := f.jobs.RunCleanup(f.ctx)
	if err != nil || res.Processed != 0 {
		t.Fatalf("within retention: want processed=0 got=%+v err=%v", res, err)
	}

	f.clock.Advance(25 * time.Hour)
	res, err = f.jobs.RunCleanup(f.ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if res.Processed != 1 || res.Succeeded != 1 {
		t.Fatalf("result: want processed=1 got=%+v", res)
	}
	if res.Details["merge_operations_deleted"] != 1 || res.Details["fallback_operations_deleted"] != 1 {
		t.Fatalf("details: got=%v", res.Details)
	}
	ops, _ := f.merges.ListMergeOperations(f.ctx, "L1")
	if len(ops) != 0 {
		t.Fatalf("merge operations: want none got=%d", len(ops))
	}
	after, _ := f.namespaces.ListEvents(f.ctx, "L1", "", 0)
	if len(after) != len(before)+1 || after[0].EventType != domain.EventNamespacePurged {
		t.Fatalf("events: want %d + namespace_purged got=%d (latest %s)", len(before), len(after), after[0].EventType)
	}

	res, _ = f.jobs.RunCleanup(f.ctx)
	if res.Processed != 0 {
		t.Fatalf("second cleanup: want processed=0 got=%d", res.Processed)
	}
	if s := f.reload(t, "L2").Status; s != domain.NamespaceStatusActive {
		t.Fatalf("L2 untouched: want active got=%s", s)
	}
}

func TestRunByName(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	if _, err := f.jobs.RunByName(f.ctx, "reindex"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown job: want=%v got=%v", domain.ErrValidation, err)
	}
	res, err := f.jobs.RunByName(f.ctx, domain.JobCleanup)
	if err != nil || res.Job != domain.JobCleanup {
		t.Fatalf("cleanup by name: res=%v err=%v", res, err)
	}
}

func TestHealthSweepRequeuesOnlyOldReceipts(t *testing.T) {
	f := newFixture(t, fixtureOpts{jobs: JobsPolicy{StaleAfter: time.Hour}})
	f.create(t, "L1")
	f.create(t, "L2")
	lost, err := f.fallbacks.InitiateFallbackRecovery(f.ctx, "L1", domain.FallbackReasonManualRequest, nil)
	if err != nil {
		t.Fatalf("initiate L1: %v", err)
	}
	if item, _ := f.queue.Pop(f.ctx, time.Second); item == nil || item.OperationID != lost {
		t.Fatalf("pop: want item %s got=%v", lost, item)
	}
	f.clock.Advance(2 * time.Hour)
	if _, err := f.fallbacks.InitiateFallbackRecovery(f.ctx, "L2", domain.FallbackReasonManualRequest, nil); err != nil {
		t.Fatalf("initiate L2: %v", err)
	}

	res, err := f.jobs.RunHealthSweep(f.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Details["fallback_requeued"] != 1 {
		t.Fatalf("fallback_requeued: want=1 got=%v", res.Details)
	}
	if depth, _ := f.fallbacks.QueueDepth(f.ctx); depth != 2 {
		t.Fatalf("queue depth: want=2 got=%d", depth)
	}
}
