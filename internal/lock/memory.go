package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests.
// Lease expiry is honoured the same way the Redis implementation honours PX.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: map[Key]memoryEntry{}, now: time.Now}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key Key, lease, wait time.Duration) (*Lease, error) {
	token := newToken()
	var expiresAt time.Time
	err := acquireWithWait(ctx, wait, func(context.Context) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		now := m.now()
		if cur, ok := m.entries[key]; ok && now.Before(cur.expiresAt) {
			return false, nil
		}
		expiresAt = now.Add(lease)
		m.entries[key] = memoryEntry{token: token, expiresAt: expiresAt}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Lease{Key: key, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *MemoryLocker) Release(_ context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[l.Key]
	if !ok || cur.token != l.Token {
		return ErrNotHeld
	}
	delete(m.entries, l.Key)
	if !m.now().Before(cur.expiresAt) {
		return ErrNotHeld
	}
	return nil
}

func (m *MemoryLocker) Extend(_ context.Context, l *Lease, lease time.Duration) error {
	if l == nil {
		return ErrNotHeld
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	cur, ok := m.entries[l.Key]
	if !ok || cur.token != l.Token || !now.Before(cur.expiresAt) {
		return ErrNotHeld
	}
	cur.expiresAt = now.Add(lease)
	m.entries[l.Key] = cur
	l.ExpiresAt = cur.expiresAt
	return nil
}

func (m *MemoryLocker) IsHeld(_ context.Context, key Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(cur.expiresAt) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

// Close drops every held lease.
func (m *MemoryLocker) Close() error {
	m.mu.Lock()
	m.entries = map[Key]memoryEntry{}
	m.mu.Unlock()
	return nil
}
