package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type countingRunner struct {
	mu   sync.Mutex
	runs map[string]int
}

func (r *countingRunner) RunByName(_ context.Context, name string) (*types.JobResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[name]++
	return &types.JobResult{Job: name}, nil
}

func (r *countingRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[name]
}

func TestTickerRunsEnabledJobs(t *testing.T) {
	runner := &countingRunner{runs: map[string]int{}}
	tk := NewTicker(logger.Nop(), runner, map[string]time.Duration{
		"health-check": 10 * time.Millisecond,
		"cleanup":      0,
	})
	if got := tk.Jobs(); len(got) != 1 || got[0] != "health-check" {
		t.Fatalf("jobs: want=[health-check] got=%v", got)
	}
	tk.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for runner.count("health-check") < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("health-check ran %d times", runner.count("health-check"))
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = tk.Close()
	if runner.count("cleanup") != 0 {
		t.Fatalf("disabled job ran %d times", runner.count("cleanup"))
	}
}
