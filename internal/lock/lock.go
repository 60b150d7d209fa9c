// Package lock provides the per-namespace mutual-exclusion lease that serializes
// merges, fallbacks and deletes across orchestrator instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	PurposeMerge = "merge"

	DefaultKeyPrefix = "nsorch:lock"
)

// ErrContended is returned when the lock stays held by someone else for the whole wait.
var ErrContended = errors.New("lock contended")

// ErrNotHeld is returned when releasing or extending a lease that has expired or changed owner.
var ErrNotHeld = errors.New("lock not held")

type Key struct {
	NamespaceID uuid.UUID
	Purpose     string
}

func (k Key) String() string {
	return k.withPrefix(DefaultKeyPrefix)
}

func (k Key) withPrefix(prefix string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return fmt.Sprintf("%s:%s:%s", prefix, k.NamespaceID, k.Purpose)
}

// Lease is proof of ownership. Token is a fencing value unique to this acquisition.
type Lease struct {
	Key       Key
	Token     string
	ExpiresAt time.Time
}

type Locker interface {
	// Acquire blocks up to wait for the key; it returns ErrContended when the wait elapses.
	Acquire(ctx context.Context, key Key, lease, wait time.Duration) (*Lease, error)
	Release(ctx context.Context, l *Lease) error
	Extend(ctx context.Context, l *Lease, lease time.Duration) error
	IsHeld(ctx context.Context, key Key) (bool, error)
}

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 200 * time.Millisecond
)

// acquireWithWait polls try with capped, jittered backoff until it succeeds, the wait elapses or ctx ends.
func acquireWithWait(ctx context.Context, wait time.Duration, try func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(wait)
	interval := minPollInterval
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrContended
		}
		sleep := interval + time.Duration(rand.Int63n(int64(interval)/2+1))
		if sleep > remaining {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

func newToken() string { return uuid.NewString() }
