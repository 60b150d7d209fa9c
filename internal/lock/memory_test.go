package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryLockerContendedAfterWait(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	key := Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}

	held, err := m.Acquire(ctx, key, time.Minute, 0)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	start := time.Now()
	if _, err := m.Acquire(ctx, key, time.Minute, 50*time.Millisecond); !errors.Is(err, ErrContended) {
		t.Fatalf("second acquire: want=%v got=%v", ErrContended, err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatalf("second acquire returned before the wait elapsed")
	}
	if err := m.Release(ctx, held); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := m.Acquire(ctx, key, time.Minute, 0); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestMemoryLockerLeaseExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	key := Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}

	stale, err := m.Acquire(ctx, key, time.Second, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	now = now.Add(2 * time.Second)
	if held, _ := m.IsHeld(ctx, key); held {
		t.Fatalf("IsHeld after expiry: want=false got=true")
	}
	fresh, err := m.Acquire(ctx, key, time.Minute, 0)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if err := m.Release(ctx, stale); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("release stale lease: want=%v got=%v", ErrNotHeld, err)
	}
	if held, _ := m.IsHeld(ctx, key); !held {
		t.Fatalf("stale release must not drop the new owner's lease")
	}
	if err := m.Extend(ctx, fresh, time.Hour); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !fresh.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("extended expiry: want=%v got=%v", now.Add(time.Hour), fresh.ExpiresAt)
	}
}

func TestMemoryLockerSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	key := Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}

	const n = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(ctx, key, time.Minute, 20*time.Millisecond); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("winners: want=1 got=%d", wins.Load())
	}
}

func TestMemoryLockerKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	if _, err := m.Acquire(ctx, Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}, time.Minute, 0); err != nil {
		t.Fatalf("ns A: %v", err)
	}
	if _, err := m.Acquire(ctx, Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}, time.Minute, 0); err != nil {
		t.Fatalf("ns B must not contend with ns A: %v", err)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (r *recordingObserver) ObserveLockAcquire(_ string, result string, _ time.Duration) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
}

func TestWithObserverReportsResults(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	l := WithObserver(NewMemoryLocker(), obs)
	key := Key{NamespaceID: uuid.New(), Purpose: PurposeMerge}
	_, _ = l.Acquire(ctx, key, time.Minute, 0)
	_, _ = l.Acquire(ctx, key, time.Minute, 0)
	if len(obs.results) != 2 || obs.results[0] != "acquired" || obs.results[1] != "contended" {
		t.Fatalf("observed: want=[acquired contended] got=%v", obs.results)
	}
}

func TestKeyString(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	got := Key{NamespaceID: id, Purpose: PurposeMerge}.String()
	want := "nsorch:lock:00000000-0000-0000-0000-000000000001:merge"
	if got != want {
		t.Fatalf("key: want=%q got=%q", want, got)
	}
}
