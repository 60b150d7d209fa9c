// Package scheduler runs the admin sweeps in-process on fixed intervals when Temporal is not configured.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// JobRunner is satisfied by services.JobsService.
type JobRunner interface {
	RunByName(ctx context.Context, name string) (*types.JobResult, error)
}

type Ticker struct {
	log       *logger.Logger
	runner    JobRunner
	intervals map[string]time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewTicker schedules each job at its interval. Jobs with a non-positive interval are disabled.
func NewTicker(baseLog *logger.Logger, runner JobRunner, intervals map[string]time.Duration) *Ticker {
	enabled := make(map[string]time.Duration, len(intervals))
	for name, every := range intervals {
		if every > 0 {
			enabled[name] = every
		}
	}
	return &Ticker{
		log:       baseLog.With("component", "JobTicker"),
		runner:    runner,
		intervals: enabled,
	}
}

func (t *Ticker) Jobs() []string {
	out := make([]string, 0, len(t.intervals))
	for name := range t.intervals {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil || len(t.intervals) == 0 {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	for _, name := range t.Jobs() {
		every := t.intervals[name]
		t.log.Info("Scheduling job", "job", name, "every", every.String())
		t.wg.Add(1)
		go func(name string, every time.Duration) {
			defer t.wg.Done()
			t.loop(ctx, name, every)
		}(name, every)
	}
}

// loop runs one job serially, so a slow run delays the next tick instead of overlapping it.
func (t *Ticker) loop(ctx context.Context, name string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := t.runner.RunByName(ctx, name)
			if err != nil {
				t.log.Warn("Scheduled job failed", "job", name, "error", err)
				continue
			}
			t.log.Debug("Scheduled job done", "job", name, "processed", res.Processed, "failed", res.Failed)
		}
	}
}

func (t *Ticker) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}
