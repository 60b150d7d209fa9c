package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx/scheduledjob"
)

// Runner polls the orchestrator task queue for scheduled sweep workflows.
type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	cfg    temporalx.Config
	runner scheduledjob.JobRunner

	w worker.Worker
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, runner scheduledjob.JobRunner) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if runner == nil {
		return nil, fmt.Errorf("temporal worker missing job runner")
	}
	return &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg, runner: runner}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	r.log.Info("Starting Temporal worker", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(r.cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			r.w = w
			r.log.Info("Temporal worker started", "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.log, r.cfg); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}

		if r.cfg.DialMaxWait <= 0 || time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}

		r.log.Warn("Temporal worker failed to start; retrying", "attempt", attempt, "error", startErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(temporalx.ClampBackoff(r.cfg.DialBackoff, r.cfg.DialBackoffMax, attempt)):
		}
	}
}

func (r *Runner) Close() {
	if r == nil || r.w == nil {
		return
	}
	r.w.Stop()
	r.w = nil
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &scheduledjob.Activities{Log: r.log, Runner: r.runner}
	w.RegisterWorkflowWithOptions(scheduledjob.Workflow, workflow.RegisterOptions{Name: scheduledjob.WorkflowName})
	w.RegisterActivityWithOptions(acts.RunJob, activity.RegisterOptions{Name: scheduledjob.ActivityRunJob})
	return w
}
