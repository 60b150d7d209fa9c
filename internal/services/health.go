package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

const bytesPerMiB = 1 << 20

type HealthService interface {
	CheckHealth(ctx context.Context, ownerID string) (*types.NamespaceHealth, error)
	Evaluate(ctx context.Context, ns *types.Namespace) (*types.NamespaceHealth, error)
	Policy() HealthPolicy
}

type healthService struct {
	deps   Deps
	log    *logger.Logger
	policy HealthPolicy
}

func NewHealthService(deps Deps, policy HealthPolicy, lockPolicy LockPolicy) HealthService {
	deps = deps.withDefaults()
	if policy.StuckAfter <= 0 {
		policy.StuckAfter = lockPolicy.withDefaults().Lease
	}
	return &healthService{
		deps:   deps,
		log:    deps.Log.With("service", "HealthService"),
		policy: policy,
	}
}

func (s *healthService) Policy() HealthPolicy { return s.policy }

// CheckHealth never takes the lock, so it stays answerable during a merge.
func (s *healthService) CheckHealth(ctx context.Context, ownerID string) (*types.NamespaceHealth, error) {
	ns, err := s.deps.Namespaces.GetLiveByOwner(dbctx.Context{Ctx: ctx}, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "health.check", err)
	}
	if ns == nil {
		return nil, domain.NewError(domain.CodeNotFound, "health.check", "namespace not found", nil)
	}
	return s.Evaluate(ctx, ns)
}

// Evaluate scores ns. Degradation is reported through Issues; the error is reserved for store failures.
func (s *healthService) Evaluate(ctx context.Context, ns *types.Namespace) (*types.NamespaceHealth, error) {
	dbc := dbctx.Context{Ctx: ctx}
	p := s.policy
	now := s.deps.now()

	open, err := s.deps.Merges.ListByNamespaceSince(dbc, ns.ID,
		[]string{domain.MergeStatusPending, domain.MergeStatusRunning}, time.Time{})
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "health.evaluate", err)
	}
	failures, err := s.deps.Merges.CountByNamespaceStatusSince(dbc, ns.ID, domain.MergeStatusFailed, now.Add(-p.FailureWindow))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, "health.evaluate", err)
	}

	score := p.Ceiling
	var issues []string
	lag := ns.VersionLag()

	// An idle namespace with nothing pending is healthy regardless of age.
	if idle := now.Sub(ns.UpdatedAt); (lag > 0 || len(open) > 0) && idle > p.ExpectedCadence {
		cadences := math.Floor(float64(idle) / float64(p.ExpectedCadence))
		score -= math.Min(cadences*p.StalenessPenalty, p.MaxStalenessPenalty)
		issues = append(issues, fmt.Sprintf("pending work idle for %s (expected cadence %s)", idle.Truncate(time.Minute), p.ExpectedCadence))
	}

	if failures > 0 {
		score -= math.Min(float64(failures)*p.FailurePenalty, p.MaxFailurePenalty)
		issues = append(issues, fmt.Sprintf("%d failed merge(s) in the last %s", failures, p.FailureWindow))
	}

	if p.ThrashPerDay > 0 {
		days := math.Max(now.Sub(ns.CreatedAt).Hours()/24, 1)
		if rate := float64(ns.VersionCount-1) / days; rate > p.ThrashPerDay {
			score -= p.ThrashPenalty
			issues = append(issues, fmt.Sprintf("version churn %.1f/day exceeds %.1f/day", rate, p.ThrashPerDay))
		}
	}

	if ns.Status == domain.NamespaceStatusCorrupted {
		score -= p.CorruptedPenalty
		issues = append(issues, "namespace is corrupted")
	}

	for _, op := range open {
		if op.Status != domain.MergeStatusRunning {
			continue
		}
		started := op.UpdatedAt
		if op.StartedAt != nil {
			started = *op.StartedAt
		}
		if now.Sub(started) > p.StuckAfter {
			score -= p.StuckPenalty
			issues = append(issues, fmt.Sprintf("merge operation %s running for %s", op.ID, now.Sub(started).Truncate(time.Second)))
			break
		}
	}

	if p.OversizeBytes > 0 && ns.CheckpointSizeBytes > p.OversizeBytes {
		score -= p.OversizePenalty
		issues = append(issues, fmt.Sprintf("checkpoint size %d bytes exceeds %d", ns.CheckpointSizeBytes, p.OversizeBytes))
	}

	score = math.Round(math.Max(0, math.Min(score, p.Ceiling))*1000) / 1000
	if issues == nil {
		issues = []string{}
	}
	h := &types.NamespaceHealth{
		NamespaceID:      ns.ID,
		OwnerID:          ns.OwnerID,
		IsHealthy:        len(issues) == 0,
		IntegrityScore:   score,
		VersionLag:       lag,
		CheckpointSizeMB: float64(ns.CheckpointSizeBytes) / bytesPerMiB,
		Issues:           issues,
		LastHealthCheck:  now,
	}
	s.deps.Recorder.ObserveHealth(h.IsHealthy, score)
	return h, nil
}
