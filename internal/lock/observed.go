package lock

import (
	"context"
	"errors"
	"time"
)

// AcquireObserver receives one call per Acquire with result "acquired", "contended" or "error".
type AcquireObserver interface {
	ObserveLockAcquire(purpose, result string, wait time.Duration)
}

type observedLocker struct {
	Locker
	obs AcquireObserver
}

// WithObserver wraps l so every acquisition attempt is reported to obs.
func WithObserver(l Locker, obs AcquireObserver) Locker {
	if obs == nil {
		return l
	}
	return &observedLocker{Locker: l, obs: obs}
}

func (o *observedLocker) Acquire(ctx context.Context, key Key, lease, wait time.Duration) (*Lease, error) {
	start := time.Now()
	l, err := o.Locker.Acquire(ctx, key, lease, wait)
	result := "acquired"
	switch {
	case errors.Is(err, ErrContended):
		result = "contended"
	case err != nil:
		result = "error"
	}
	o.obs.ObserveLockAcquire(key.Purpose, result, time.Since(start))
	return l, err
}
