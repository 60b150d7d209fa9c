// Package scheduledjob runs orchestrator sweeps as Temporal workflows started by schedules.
package scheduledjob

const (
	WorkflowName   = "scheduled_job"
	ActivityRunJob = "RunJob"
)
