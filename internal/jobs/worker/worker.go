// Package worker consumes fallback recovery items from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/queue"
)

// ItemProcessor is satisfied by services.FallbackService.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item types.FallbackItem) error
}

type Config struct {
	Concurrency int
	// PopWait bounds each blocking pop so shutdown is noticed promptly.
	PopWait time.Duration
	// RequeueDelay is how long a contended item waits before it is pushed back.
	RequeueDelay time.Duration
}

type Pool struct {
	log       *logger.Logger
	queue     queue.FallbackQueue
	processor ItemProcessor
	cfg       Config

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

func NewPool(baseLog *logger.Logger, q queue.FallbackQueue, processor ItemProcessor, cfg Config) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PopWait <= 0 {
		cfg.PopWait = time.Second
	}
	if cfg.RequeueDelay <= 0 {
		cfg.RequeueDelay = 5 * time.Second
	}
	return &Pool{
		log:       baseLog.With("component", "FallbackWorker"),
		queue:     q,
		processor: processor,
		cfg:       cfg,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.log.Info("Starting fallback worker pool", "concurrency", p.cfg.Concurrency)
	for i := 0; i < p.cfg.Concurrency; i++ {
		workerID := i + 1
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runLoop(ctx, workerID)
		}()
	}
}

// Close stops the workers and waits for in-flight items to finish.
func (p *Pool) Close() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			p.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		item, err := p.queue.Pop(ctx, p.cfg.PopWait)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				p.log.Info("Worker loop stopped", "worker_id", workerID)
				return
			}
			p.log.Warn("Fallback queue pop failed", "worker_id", workerID, "error", err)
			p.sleep(ctx, p.cfg.PopWait)
			continue
		}
		if item == nil {
			continue
		}
		p.handle(ctx, workerID, *item)
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, item types.FallbackItem) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Error("Fallback processor panic",
					"worker_id", workerID,
					"operation_id", item.OperationID,
					"panic", r,
				)
				err = &panicError{Val: r}
			}
		}()
		err = p.processor.ProcessItem(ctx, item)
	}()

	switch {
	case err == nil:
	case domain.IsRetryable(err):
		p.log.Debug("Fallback item requeued", "worker_id", workerID, "operation_id", item.OperationID, "error", err)
		p.requeue(ctx, item)
	default:
		// A panic mid-restore leaves the receipt running; the health sweep fails it once the lease lapses.
		p.log.Error("Fallback item failed", "worker_id", workerID, "operation_id", item.OperationID, "error", err)
	}
}

func (p *Pool) requeue(ctx context.Context, item types.FallbackItem) {
	if !p.sleep(ctx, p.cfg.RequeueDelay) {
		return
	}
	if err := p.queue.Push(ctx, item); err != nil {
		p.log.Warn("Fallback requeue failed", "operation_id", item.OperationID, "error", err)
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
