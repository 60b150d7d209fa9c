package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/namespace-orchestrator/internal/data/repos"
	"github.com/yungbote/namespace-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/lock"
	"github.com/yungbote/namespace-orchestrator/internal/queue"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu         sync.Mutex
	tombstones []types.Tombstone
	err        error
}

func (n *fakeNotifier) NotifyTombstone(_ context.Context, t types.Tombstone) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tombstones = append(n.tombstones, t)
	return n.err
}

type fakeRecorder struct {
	nopRecorder
	mu     sync.Mutex
	merges map[string]int
}

func (r *fakeRecorder) ObserveMergeOperation(_ string, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.merges == nil {
		r.merges = map[string]int{}
	}
	r.merges[status]++
}

// blockingMergeExecutor parks inside Execute until release is closed.
type blockingMergeExecutor struct {
	next    MergeExecutor
	started chan struct{}
	release chan struct{}
}

func newBlockingMergeExecutor(next MergeExecutor) *blockingMergeExecutor {
	return &blockingMergeExecutor{
		next:    next,
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *blockingMergeExecutor) Execute(ctx context.Context, in MergeInput) (MergeResult, error) {
	e.started <- struct{}{}
	select {
	case <-e.release:
	case <-ctx.Done():
		return MergeResult{}, ctx.Err()
	}
	return e.next.Execute(ctx, in)
}

var errExecutor = errors.New("executor exploded")

type fixtureOpts struct {
	mergeExec    MergeExecutor
	fallbackExec FallbackExecutor
	health       *HealthPolicy
	jobs         JobsPolicy

	// Executor timeouts; zero keeps the lock lease.
	mergeTimeout    time.Duration
	fallbackTimeout time.Duration
}

type fixture struct {
	ctx      context.Context
	clock    *fakeClock
	deps     Deps
	hasher   *CheckpointHasher
	locker   *lock.MemoryLocker
	queue    *queue.MemoryQueue
	notifier *fakeNotifier
	recorder *fakeRecorder

	namespaces NamespaceService
	merges     MergeService
	fallbacks  FallbackService
	health     HealthService
	stats      StatsService
	jobs       JobsService
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	clock := newFakeClock()
	locker := lock.NewMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })
	q := queue.NewMemoryQueue(64)
	t.Cleanup(func() { _ = q.Close() })
	recorder := &fakeRecorder{}

	deps := Deps{
		DB:         db,
		Log:        log,
		Namespaces: repos.NewNamespaceRepo(db, log),
		Merges:     repos.NewMergeOperationRepo(db, log),
		Fallbacks:  repos.NewFallbackOperationRepo(db, log),
		Events:     repos.NewEventLogRepo(db, log),
		Locker:     locker,
		Recorder:   recorder,
		Now:        clock.Now,
	}
	hasher := NewCheckpointHasher("test-master-key")
	if opts.mergeExec == nil {
		opts.mergeExec = NewHashMergeExecutor(hasher)
	}
	if opts.fallbackExec == nil {
		opts.fallbackExec = NewHashFallbackExecutor(hasher)
	}
	healthPolicy := DefaultHealthPolicy()
	if opts.health != nil {
		healthPolicy = *opts.health
	}
	lockPolicy := LockPolicy{Lease: time.Minute}
	notifier := &fakeNotifier{}

	f := &fixture{
		ctx:      context.Background(),
		clock:    clock,
		deps:     deps,
		hasher:   hasher,
		locker:   locker,
		queue:    q,
		notifier: notifier,
		recorder: recorder,
	}
	f.namespaces = NewNamespaceService(deps, hasher, notifier, lockPolicy)
	f.merges = NewMergeService(deps, opts.mergeExec, lockPolicy, MergePolicy{MinInterval: time.Hour, Timeout: opts.mergeTimeout})
	f.fallbacks = NewFallbackService(deps, q, opts.fallbackExec, lockPolicy, FallbackPolicy{Timeout: opts.fallbackTimeout})
	f.health = NewHealthService(deps, healthPolicy, lockPolicy)
	f.stats = NewStatsService(deps, f.fallbacks)
	f.jobs = NewJobsService(deps, f.namespaces, f.merges, f.fallbacks, f.health, opts.jobs)
	return f
}

func (f *fixture) create(t *testing.T, ownerID string) *types.Namespace {
	t.Helper()
	ns, err := f.namespaces.CreateNamespace(f.ctx, CreateNamespaceInput{OwnerID: ownerID, BaseVersion: "1.0"})
	if err != nil {
		t.Fatalf("create %s: %v", ownerID, err)
	}
	// Distinct created_at values keep list ordering deterministic.
	f.clock.Advance(time.Second)
	return ns
}

func (f *fixture) reload(t *testing.T, ownerID string) *types.Namespace {
	t.Helper()
	ns, err := f.namespaces.GetNamespace(f.ctx, ownerID)
	if err != nil {
		t.Fatalf("get %s: %v", ownerID, err)
	}
	if ns == nil {
		t.Fatalf("get %s: namespace missing", ownerID)
	}
	return ns
}

// eventTypes returns the owner's event types oldest first.
func (f *fixture) eventTypes(t *testing.T, ownerID string) []string {
	t.Helper()
	events, err := f.namespaces.ListEvents(f.ctx, ownerID, "", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	out := make([]string, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i].EventType)
	}
	return out
}

// drain consumes every queued fallback item synchronously.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for {
		item, err := f.queue.Pop(f.ctx, 10*time.Millisecond)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if item == nil {
			return
		}
		if err := f.fallbacks.ProcessItem(f.ctx, *item); err != nil {
			t.Fatalf("process %s: %v", item.OperationID, err)
		}
	}
}
