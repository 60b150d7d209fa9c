package scheduledjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// JobRunner is satisfied by services.JobsService.
type JobRunner interface {
	RunByName(ctx context.Context, name string) (*types.JobResult, error)
}

type Activities struct {
	Log    *logger.Logger
	Runner JobRunner
}

func (a *Activities) RunJob(ctx context.Context, jobName string) (*types.JobResult, error) {
	if a == nil || a.Runner == nil {
		return nil, fmt.Errorf("scheduledjob: activity not configured")
	}
	if !domain.IsKnownJob(jobName) {
		return nil, temporal.NewNonRetryableApplicationError("unknown job "+jobName, "validation", nil)
	}

	stopHB := startHeartbeat(ctx, 10*time.Second)
	defer stopHB()

	res, err := a.Runner.RunByName(ctx, jobName)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "validation", err)
		}
		if a.Log != nil {
			a.Log.Warn("Scheduled job failed", "job", jobName, "error", err)
		}
		return res, err
	}
	return res, nil
}

func startHeartbeat(ctx context.Context, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
