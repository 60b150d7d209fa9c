package namespaces

import (
	"time"

	"github.com/google/uuid"
)

// NamespaceHealth is computed on demand and never stored.
type NamespaceHealth struct {
	NamespaceID      uuid.UUID `json:"namespace_id"`
	OwnerID          string    `json:"owner_id"`
	IsHealthy        bool      `json:"is_healthy"`
	IntegrityScore   float64   `json:"integrity_score"`
	VersionLag       int64     `json:"version_lag"`
	CheckpointSizeMB float64   `json:"checkpoint_size_mb"`
	Issues           []string  `json:"issues"`
	LastHealthCheck  time.Time `json:"last_health_check"`
}

type NamespaceStats struct {
	NamespaceID        uuid.UUID        `json:"namespace_id"`
	OwnerID            string           `json:"owner_id"`
	Status             string           `json:"status"`
	VersionCount       int64            `json:"version_count"`
	VersionLag         int64            `json:"version_lag"`
	MergeOperations    map[string]int64 `json:"merge_operations"`
	FallbackOperations map[string]int64 `json:"fallback_operations"`
	EventCount         int64            `json:"event_count"`
	LastMergeAt        *time.Time       `json:"last_merge_at,omitempty"`
	LastEventAt        *time.Time       `json:"last_event_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

type GlobalStats struct {
	TotalNamespaces    int64            `json:"total_namespaces"`
	Namespaces         map[string]int64 `json:"namespaces"`
	MergeOperations    map[string]int64 `json:"merge_operations"`
	FallbackOperations map[string]int64 `json:"fallback_operations"`
	FallbackQueueDepth int64            `json:"fallback_queue_depth"`
	TotalEvents        int64            `json:"total_events"`
	GeneratedAt        time.Time        `json:"generated_at"`
}

const (
	JobNightlyMerge = "nightly-merge"
	JobHealthCheck  = "health-check"
	JobCleanup      = "cleanup"
)

func IsKnownJob(name string) bool {
	switch name {
	case JobNightlyMerge, JobHealthCheck, JobCleanup:
		return true
	default:
		return false
	}
}

// JobResult summarizes one admin sweep.
type JobResult struct {
	Job        string           `json:"job"`
	Processed  int              `json:"processed"`
	Succeeded  int              `json:"succeeded"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Details    map[string]int64 `json:"details,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}
