package temporalx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx/scheduledjob"
)

// ScheduleID is the Temporal schedule id for a sweep job.
func ScheduleID(job string) string { return "nsorch-" + job }

// Crons maps job names to their configured cron expressions; empty expressions are omitted.
func (c Config) Crons() map[string]string {
	out := map[string]string{}
	for job, expr := range map[string]string{
		domain.JobNightlyMerge: c.NightlyMergeCron,
		domain.JobHealthCheck:  c.HealthCheckCron,
		domain.JobCleanup:      c.CleanupCron,
	} {
		if expr = strings.TrimSpace(expr); expr != "" {
			out[job] = expr
		}
	}
	return out
}

// EnsureSchedules creates one schedule per configured job, or updates the cron of an existing one.
// Overlapping runs of the same job are skipped.
func EnsureSchedules(ctx context.Context, c client.Client, log *logger.Logger, cfg Config) error {
	if c == nil {
		return fmt.Errorf("temporal client is not configured")
	}
	crons := cfg.Crons()
	jobs := make([]string, 0, len(crons))
	for job := range crons {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)

	sc := c.ScheduleClient()
	for _, job := range jobs {
		id := ScheduleID(job)
		spec := client.ScheduleSpec{CronExpressions: []string{crons[job]}}
		_, err := sc.Create(ctx, client.ScheduleOptions{
			ID:   id,
			Spec: spec,
			Action: &client.ScheduleWorkflowAction{
				ID:        id,
				Workflow:  scheduledjob.WorkflowName,
				Args:      []interface{}{job},
				TaskQueue: cfg.TaskQueue,
			},
			Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		})
		if err == nil {
			if log != nil {
				log.Info("Temporal schedule created", "schedule_id", id, "cron", crons[job])
			}
			continue
		}
		if !errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			return fmt.Errorf("create schedule %s: %w", id, err)
		}
		err = sc.GetHandle(ctx, id).Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				sched := in.Description.Schedule
				sched.Spec = &spec
				return &client.ScheduleUpdate{Schedule: &sched}, nil
			},
		})
		if err != nil {
			return fmt.Errorf("update schedule %s: %w", id, err)
		}
		if log != nil {
			log.Info("Temporal schedule updated", "schedule_id", id, "cron", crons[job])
		}
	}
	return nil
}
