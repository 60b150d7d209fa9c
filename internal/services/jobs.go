package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type JobsPolicy struct {
	NightlyConcurrency int
	HealthConcurrency  int
	PageSize           int
	// StaleAfter is how long a non-terminal merge or fallback may sit untouched before the sweep
	// fails it, and how old a queued receipt must be before the sweep pushes it again.
	StaleAfter       time.Duration
	CleanupRetention time.Duration
	CleanupBatch     int
}

func (p JobsPolicy) withDefaults() JobsPolicy {
	if p.NightlyConcurrency <= 0 {
		p.NightlyConcurrency = 4
	}
	if p.HealthConcurrency <= 0 {
		p.HealthConcurrency = 8
	}
	if p.PageSize <= 0 {
		p.PageSize = 200
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = 10 * time.Minute
	}
	if p.CleanupRetention <= 0 {
		p.CleanupRetention = 30 * 24 * time.Hour
	}
	if p.CleanupBatch <= 0 {
		p.CleanupBatch = 100
	}
	return p
}

type JobsService interface {
	RunNightlyMerge(ctx context.Context) (*types.JobResult, error)
	RunHealthSweep(ctx context.Context) (*types.JobResult, error)
	RunCleanup(ctx context.Context) (*types.JobResult, error)
	RunByName(ctx context.Context, name string) (*types.JobResult, error)
}

type jobsService struct {
	deps       Deps
	log        *logger.Logger
	namespaces NamespaceService
	merges     MergeService
	fallbacks  FallbackService
	health     HealthService
	policy     JobsPolicy
}

func NewJobsService(deps Deps, namespaces NamespaceService, merges MergeService, fallbacks FallbackService, health HealthService, policy JobsPolicy) JobsService {
	deps = deps.withDefaults()
	return &jobsService{
		deps:       deps,
		log:        deps.Log.With("service", "JobsService"),
		namespaces: namespaces,
		merges:     merges,
		fallbacks:  fallbacks,
		health:     health,
		policy:     policy.withDefaults(),
	}
}

func (s *jobsService) RunByName(ctx context.Context, name string) (*types.JobResult, error) {
	switch name {
	case domain.JobNightlyMerge:
		return s.RunNightlyMerge(ctx)
	case domain.JobHealthCheck:
		return s.RunHealthSweep(ctx)
	case domain.JobCleanup:
		return s.RunCleanup(ctx)
	default:
		return nil, domain.NewError(domain.CodeValidation, "jobs.run", "unknown job "+name, nil)
	}
}

// tally is shared by sweep goroutines.
type tally struct {
	mu  sync.Mutex
	res *types.JobResult
}

func (t *tally) add(fn func(r *types.JobResult)) {
	t.mu.Lock()
	fn(t.res)
	t.mu.Unlock()
}

func (s *jobsService) start(ctx context.Context, job string) (context.Context, *types.JobResult, func(err error)) {
	ctx, span := observability.Tracer().Start(ctx, "job."+job)
	res := &types.JobResult{Job: job, Details: map[string]int64{}, StartedAt: s.deps.now()}
	return ctx, res, func(err error) {
		res.FinishedAt = s.deps.now()
		status := "succeeded"
		if err != nil {
			status = "failed"
			span.RecordError(err)
		}
		span.SetAttributes(
			attribute.Int("job.processed", res.Processed),
			attribute.Int("job.failed", res.Failed),
		)
		span.End()
		s.deps.Recorder.ObserveJob(job, status, res.FinishedAt.Sub(res.StartedAt))
		s.log.Info("job finished",
			"job", job,
			"status", status,
			"processed", res.Processed,
			"succeeded", res.Succeeded,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}
}

// listLive pages through namespaces with the given status ("" for every non-deleted one).
func (s *jobsService) listLive(ctx context.Context, status string) ([]*types.Namespace, error) {
	var out []*types.Namespace
	for offset := 0; ; offset += s.policy.PageSize {
		page, err := s.namespaces.ListNamespaces(ctx, types.ListFilter{Status: status, Limit: s.policy.PageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < s.policy.PageSize {
			return out, nil
		}
	}
}

// RunNightlyMerge merges every active namespace. Throttled or busy namespaces count as skipped.
func (s *jobsService) RunNightlyMerge(ctx context.Context) (res *types.JobResult, err error) {
	ctx, res, finish := s.start(ctx, domain.JobNightlyMerge)
	defer func() { finish(err) }()

	active, err := s.listLive(ctx, domain.NamespaceStatusActive)
	if err != nil {
		return res, err
	}
	t := &tally{res: res}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.NightlyConcurrency)
	for _, ns := range active {
		g.Go(func() error {
			_, mergeErr := s.merges.RunMerge(gctx, ns.OwnerID, domain.MergeTypeNightly, false)
			t.add(func(r *types.JobResult) {
				r.Processed++
				switch {
				case mergeErr == nil:
					r.Succeeded++
				case errors.Is(mergeErr, domain.ErrTooRecent),
					errors.Is(mergeErr, domain.ErrLockContended),
					errors.Is(mergeErr, domain.ErrNotActive):
					r.Skipped++
					r.Details[string(domain.CodeOf(mergeErr))]++
				default:
					r.Failed++
					r.Details[string(domain.CodeOf(mergeErr))]++
				}
			})
			if mergeErr != nil && !domain.IsRetryable(mergeErr) && !errors.Is(mergeErr, domain.ErrTooRecent) {
				s.log.Warn("nightly merge failed", "namespace_id", ns.ID, "error", mergeErr)
			}
			return gctx.Err()
		})
	}
	err = g.Wait()
	return res, err
}

// RunHealthSweep fails stale merges and fallback receipts, requeues lost fallback items, then scores
// every live namespace.
// Active namespaces scoring under the corruption threshold are marked corrupted and sent to fallback.
func (s *jobsService) RunHealthSweep(ctx context.Context) (res *types.JobResult, err error) {
	ctx, res, finish := s.start(ctx, domain.JobHealthCheck)
	defer func() { finish(err) }()

	cutoff := s.deps.now().Add(-s.policy.StaleAfter)
	staleFailed, err := s.merges.FailStaleOperations(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Details["stale_failed"] = int64(staleFailed)
	staleFallbacks, err := s.fallbacks.FailStaleFallbacks(ctx, cutoff)
	if err != nil {
		return res, err
	}
	res.Details["stale_fallbacks_failed"] = int64(staleFallbacks)
	if requeued, rqErr := s.fallbacks.RequeueQueued(ctx, cutoff); rqErr != nil {
		s.log.Warn("fallback requeue failed", "error", rqErr)
	} else {
		res.Details["fallback_requeued"] = int64(requeued)
	}

	live, err := s.listLive(ctx, "")
	if err != nil {
		return res, err
	}
	threshold := s.health.Policy().CorruptionThreshold
	t := &tally{res: res}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.policy.HealthConcurrency)
	for _, ns := range live {
		g.Go(func() error {
			h, evalErr := s.health.Evaluate(gctx, ns)
			if evalErr != nil {
				t.add(func(r *types.JobResult) { r.Processed++; r.Failed++ })
				s.log.Warn("health evaluation failed", "namespace_id", ns.ID, "error", evalErr)
				return gctx.Err()
			}
			corrupted := false
			if ns.Status == domain.NamespaceStatusActive && h.IntegrityScore < threshold {
				corrupted = s.quarantine(gctx, ns, h.IntegrityScore)
			}
			t.add(func(r *types.JobResult) {
				r.Processed++
				r.Succeeded++
				if h.IsHealthy {
					r.Details["healthy"]++
				} else {
					r.Details["unhealthy"]++
				}
				if corrupted {
					r.Details["corrupted"]++
				}
			})
			return gctx.Err()
		})
	}
	err = g.Wait()
	return res, err
}

func (s *jobsService) quarantine(ctx context.Context, ns *types.Namespace, score float64) bool {
	reason := fmt.Sprintf("integrity score %.3f below threshold", score)
	if _, err := s.namespaces.MarkCorrupted(ctx, ns.OwnerID, reason); err != nil {
		s.log.Warn("mark corrupted failed", "namespace_id", ns.ID, "error", err)
		return false
	}
	open, err := s.deps.Fallbacks.HasOpen(dbctx.Context{Ctx: ctx}, ns.ID)
	if err != nil {
		s.log.Warn("fallback lookup failed", "namespace_id", ns.ID, "error", err)
		return true
	}
	if !open {
		if _, err := s.fallbacks.InitiateFallbackRecovery(ctx, ns.OwnerID, domain.FallbackReasonCorruptionDetected, nil); err != nil {
			s.log.Warn("fallback initiation failed", "namespace_id", ns.ID, "error", err)
		}
	}
	return true
}

// RunCleanup purges operation rows of namespaces tombstoned longer than the retention.
// The namespace row and its event log stay.
func (s *jobsService) RunCleanup(ctx context.Context) (res *types.JobResult, err error) {
	ctx, res, finish := s.start(ctx, domain.JobCleanup)
	defer func() { finish(err) }()

	cutoff := s.deps.now().Add(-s.policy.CleanupRetention)
	for {
		batch, err := s.deps.Namespaces.ListPurgeable(dbctx.Context{Ctx: ctx}, cutoff, s.policy.CleanupBatch)
		if err != nil {
			return res, domain.Wrap(domain.CodeInternal, "jobs.cleanup", err)
		}
		for _, ns := range batch {
			merges, fallbacks, purgeErr := s.purge(ctx, ns)
			res.Processed++
			if purgeErr != nil {
				res.Failed++
				s.log.Warn("namespace purge failed", "namespace_id", ns.ID, "error", purgeErr)
				continue
			}
			res.Succeeded++
			res.Details["merge_operations_deleted"] += merges
			res.Details["fallback_operations_deleted"] += fallbacks
		}
		// A failed purge keeps its row purgeable, so stop rather than spin on it.
		if len(batch) < s.policy.CleanupBatch || res.Failed > 0 {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
}

func (s *jobsService) purge(ctx context.Context, ns *types.Namespace) (merges, fallbacks int64, err error) {
	err = s.deps.base().Write(ctx, "jobs.purge", func(dbc dbctx.Context) error {
		cur, err := s.deps.Namespaces.LockByID(dbc, ns.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.PurgedAt != nil {
			return nil
		}
		if merges, err = s.deps.Merges.DeleteByNamespace(dbc, cur.ID); err != nil {
			return err
		}
		if fallbacks, err = s.deps.Fallbacks.DeleteByNamespace(dbc, cur.ID); err != nil {
			return err
		}
		now := s.deps.now()
		if err := s.deps.Namespaces.UpdateFields(dbc, cur.ID, map[string]interface{}{
			"purged_at":  now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		return appendEvent(dbc, s.deps.Events, cur, domain.EventNamespacePurged, map[string]any{
			"merge_operations_deleted":    merges,
			"fallback_operations_deleted": fallbacks,
		}, cur.CurrentCheckpointHash)
	})
	return merges, fallbacks, err
}
