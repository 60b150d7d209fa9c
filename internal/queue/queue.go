// Package queue carries fallback recovery requests from the API to the worker pool.
// Items are hints: the durable receipt is the fallback_operation row, so a lost or
// duplicated item never loses or double-runs a recovery.
package queue

import (
	"context"
	"errors"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
)

var (
	ErrClosed    = errors.New("queue closed")
	ErrQueueFull = errors.New("queue full")
)

type FallbackQueue interface {
	Push(ctx context.Context, item types.FallbackItem) error
	// Pop waits up to wait for an item. It returns nil, nil on timeout.
	Pop(ctx context.Context, wait time.Duration) (*types.FallbackItem, error)
	Len(ctx context.Context) (int64, error)
	Close() error
}
