package queue

import (
	"context"
	"sync"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
)

const DefaultMemoryCapacity = 1024

type MemoryQueue struct {
	items  chan types.FallbackItem
	done   chan struct{}
	closed sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryQueue{
		items: make(chan types.FallbackItem, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(ctx context.Context, item types.FallbackItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, wait time.Duration) (*types.FallbackItem, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case item := <-q.items:
		return &item, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.items)), nil
}

func (q *MemoryQueue) Close() error {
	q.closed.Do(func() { close(q.done) })
	return nil
}
