package scheduledjob

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
)

// Workflow runs a single sweep. Overlapping runs are prevented by the schedule's overlap policy.
func Workflow(ctx workflow.Context, jobName string) (*types.JobResult, error) {
	jobName = strings.TrimSpace(jobName)
	if jobName == "" {
		return nil, fmt.Errorf("scheduledjob: missing job name")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        10 * time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"validation"},
		},
	})

	var out types.JobResult
	if err := workflow.ExecuteActivity(ctx, ActivityRunJob, jobName).Get(ctx, &out); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("Scheduled job completed", "job", jobName, "processed", out.Processed, "failed", out.Failed)
	return &out, nil
}
