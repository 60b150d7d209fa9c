package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
)

func TestCreateNamespaceScenario(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ns := f.create(t, "L1")

	if ns.Status != domain.NamespaceStatusActive {
		t.Fatalf("status: want=%s got=%s", domain.NamespaceStatusActive, ns.Status)
	}
	if ns.VersionCount != 1 {
		t.Fatalf("version_count: want=1 got=%d", ns.VersionCount)
	}
	if !domain.IsCheckpointHash(ns.CurrentCheckpointHash) {
		t.Fatalf("checkpoint: want ckpt_* got=%q", ns.CurrentCheckpointHash)
	}
	if got := f.eventTypes(t, "L1"); len(got) != 1 || got[0] != domain.EventNamespaceCreated {
		t.Fatalf("events: want=[namespace_created] got=%v", got)
	}
}

func TestCreateNamespaceValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	if _, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{BaseVersion: "1.0"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing owner: want=%v got=%v", domain.ErrValidation, err)
	}
	if _, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{OwnerID: "L1"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing base version: want=%v got=%v", domain.ErrValidation, err)
	}
	_, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{
		OwnerID:     "L1",
		BaseVersion: "1.0",
		Config:      json.RawMessage(`[1,2]`),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("array config: want=%v got=%v", domain.ErrValidation, err)
	}
}

func TestCreateNamespaceUniqueness(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	orig := f.create(t, "L1")

	_, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{OwnerID: "L1", BaseVersion: "2.0"})
	if !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("second create: want=%v got=%v", domain.ErrDuplicate, err)
	}
	cur := f.reload(t, "L1")
	if cur.ID != orig.ID || cur.BaseVersion != "1.0" || cur.CurrentCheckpointHash != orig.CurrentCheckpointHash {
		t.Fatalf("original changed: want=%+v got=%+v", orig, cur)
	}

	if ok, err := f.namespaces.DeleteNamespace(f.ctx, "L1", false); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	again := f.create(t, "L1")
	if again.ID == orig.ID {
		t.Fatalf("recreate: want new id got=%s", again.ID)
	}
}

func TestDeleteNamespaceProtection(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	until := f.clock.Now().Add(48 * time.Hour)
	if _, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{
		OwnerID:                "L1",
		BaseVersion:            "1.0",
		GuardianProtectedUntil: &until,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := f.namespaces.DeleteNamespace(f.ctx, "L1", false)
	if ok || !errors.Is(err, domain.ErrProtected) {
		t.Fatalf("unforced delete: want=(false, %v) got=(%v, %v)", domain.ErrProtected, ok, err)
	}
	if ns := f.reload(t, "L1"); ns.Status != domain.NamespaceStatusActive {
		t.Fatalf("status after refused delete: want=active got=%s", ns.Status)
	}

	ok, err = f.namespaces.DeleteNamespace(f.ctx, "L1", true)
	if err != nil || !ok {
		t.Fatalf("forced delete: ok=%v err=%v", ok, err)
	}
	if ns, _ := f.namespaces.GetNamespace(f.ctx, "L1"); ns != nil {
		t.Fatalf("get after delete: want=nil got=%+v", ns)
	}
	if len(f.notifier.tombstones) != 1 || !f.notifier.tombstones[0].Forced {
		t.Fatalf("tombstones: want one forced got=%+v", f.notifier.tombstones)
	}
	events, err := f.namespaces.ListEvents(f.ctx, "L1", domain.EventNamespaceDeleted, 0)
	if err != nil || len(events) != 1 {
		t.Fatalf("deleted events: want=1 got=%d err=%v", len(events), err)
	}
	var data map[string]any
	if err := json.Unmarshal(events[0].EventData, &data); err != nil {
		t.Fatalf("event data: %v", err)
	}
	if data["protection_bypassed"] != true {
		t.Fatalf("protection_bypassed: want=true got=%v", data["protection_bypassed"])
	}
}

func TestDeleteNamespaceAbsentAndNotifierFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ok, err := f.namespaces.DeleteNamespace(f.ctx, "ghost", false)
	if ok || err != nil {
		t.Fatalf("absent delete: want=(false, nil) got=(%v, %v)", ok, err)
	}

	f.create(t, "L1")
	f.notifier.err = errors.New("bus down")
	ok, err = f.namespaces.DeleteNamespace(f.ctx, "L1", false)
	if err != nil || !ok {
		t.Fatalf("delete with failing notifier: ok=%v err=%v", ok, err)
	}
}

func TestDeleteNamespaceContended(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ns := f.create(t, "L1")
	lease, err := f.locker.Acquire(f.ctx, mergeLockKey(ns.ID), time.Minute, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.locker.Release(f.ctx, lease)

	if _, err := f.namespaces.DeleteNamespace(f.ctx, "L1", false); !errors.Is(err, domain.ErrLockContended) {
		t.Fatalf("delete under lock: want=%v got=%v", domain.ErrLockContended, err)
	}
	if cur := f.reload(t, "L1"); cur.Status != domain.NamespaceStatusActive {
		t.Fatalf("status: want=active got=%s", cur.Status)
	}
}

func TestMarkCorruptedTransitions(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.create(t, "L1")

	ns, err := f.namespaces.MarkCorrupted(f.ctx, "L1", "bad checksum")
	if err != nil || ns.Status != domain.NamespaceStatusCorrupted {
		t.Fatalf("mark corrupted: status=%v err=%v", ns, err)
	}
	if _, err := f.namespaces.MarkCorrupted(f.ctx, "L1", "again"); err != nil {
		t.Fatalf("idempotent mark: %v", err)
	}
	got := f.eventTypes(t, "L1")
	want := []string{domain.EventNamespaceCreated, domain.EventNamespaceCorrupted}
	if len(got) != len(want) || got[1] != want[1] {
		t.Fatalf("events: want=%v got=%v", want, got)
	}
	if _, err := f.namespaces.MarkCorrupted(f.ctx, "nobody", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: want=%v got=%v", domain.ErrNotFound, err)
	}
}

func TestAcknowledgeVersionNeverMovesBackwards(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.create(t, "L1")
	for i := 0; i < 2; i++ {
		if _, err := f.merges.RunMerge(f.ctx, "L1", domain.MergeTypeManual, true); err != nil {
			t.Fatalf("merge %d: %v", i, err)
		}
	}

	ns, err := f.namespaces.AcknowledgeVersion(f.ctx, "L1", 3)
	if err != nil || ns.ReconciledVersion != 3 {
		t.Fatalf("ack 3: reconciled=%v err=%v", ns, err)
	}
	ns, err = f.namespaces.AcknowledgeVersion(f.ctx, "L1", 2)
	if err != nil || ns.ReconciledVersion != 3 {
		t.Fatalf("stale ack: want reconciled=3 got=%v err=%v", ns, err)
	}
	if _, err := f.namespaces.AcknowledgeVersion(f.ctx, "L1", 9); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("future ack: want=%v got=%v", domain.ErrValidation, err)
	}
	if _, err := f.namespaces.AcknowledgeVersion(f.ctx, "L1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero ack: want=%v got=%v", domain.ErrValidation, err)
	}
	acks, _ := f.namespaces.ListEvents(f.ctx, "L1", domain.EventVersionAcknowledged, 0)
	if len(acks) != 1 {
		t.Fatalf("ack events: want=1 got=%d", len(acks))
	}
}

func TestListNamespacesFilters(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.create(t, "L1")
	f.create(t, "L2")
	f.create(t, "L3")
	if _, err := f.namespaces.DeleteNamespace(f.ctx, "L3", false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	live, err := f.namespaces.ListNamespaces(f.ctx, domain.ListFilter{})
	if err != nil || len(live) != 2 {
		t.Fatalf("live: want=2 got=%d err=%v", len(live), err)
	}
	deleted, err := f.namespaces.ListNamespaces(f.ctx, domain.ListFilter{Status: "DELETED"})
	if err != nil || len(deleted) != 1 || deleted[0].OwnerID != "L3" {
		t.Fatalf("deleted: want=[L3] got=%v err=%v", deleted, err)
	}
	if _, err := f.namespaces.ListNamespaces(f.ctx, domain.ListFilter{Status: "zombie"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad status: want=%v got=%v", domain.ErrValidation, err)
	}
	page, err := f.namespaces.ListNamespaces(f.ctx, domain.ListFilter{Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].OwnerID != "L2" {
		t.Fatalf("page: want=[L2] got=%v err=%v", page, err)
	}
}

func TestEventsCarryActor(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.ctx = ctxutil.WithActor(f.ctx, "ops@example")
	f.create(t, "L1")
	events, err := f.namespaces.ListEvents(f.ctx, "L1", "", 0)
	if err != nil || len(events) != 1 {
		t.Fatalf("events: want=1 got=%d err=%v", len(events), err)
	}
	if events[0].CreatedBy != "ops@example" {
		t.Fatalf("created_by: want=ops@example got=%q", events[0].CreatedBy)
	}
}
