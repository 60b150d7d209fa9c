package app

import (
	"fmt"

	"github.com/yungbote/namespace-orchestrator/internal/data/repos"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type Services struct {
	Namespaces services.NamespaceService
	Merges     services.MergeService
	Fallbacks  services.FallbackService
	Health     services.HealthService
	Stats      services.StatsService
	Jobs       services.JobsService
}

func wireServices(log *logger.Logger, cfg Config, infra *Infra, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	healthPolicy := services.DefaultHealthPolicy()
	if cfg.Health.PolicyPath != "" {
		p, err := services.LoadHealthPolicy(cfg.Health.PolicyPath)
		if err != nil {
			return Services{}, fmt.Errorf("load health policy: %w", err)
		}
		healthPolicy = p
		log.Info("Loaded health policy", "path", cfg.Health.PolicyPath)
	}

	deps := services.Deps{
		DB:         infra.DB,
		Log:        log,
		Namespaces: repos.NewNamespaceRepo(infra.DB, log),
		Merges:     repos.NewMergeOperationRepo(infra.DB, log),
		Fallbacks:  repos.NewFallbackOperationRepo(infra.DB, log),
		Events:     repos.NewEventLogRepo(infra.DB, log),
		Locker:     infra.Locker,
	}
	if metrics != nil {
		deps.Recorder = metrics
		deps.Hooks = observability.WriteHooks{M: metrics}
	}

	lockPolicy := services.LockPolicy{Lease: cfg.Lock.Lease, Wait: cfg.Lock.Wait}
	hasher := services.NewCheckpointHasher(cfg.EncryptionMasterKey)

	namespaces := services.NewNamespaceService(deps, hasher, infra.Tombstone, lockPolicy)
	merges := services.NewMergeService(deps, services.NewHashMergeExecutor(hasher), lockPolicy, services.MergePolicy{
		MinInterval: cfg.Merge.MinInterval,
		Timeout:     cfg.Merge.Timeout,
	})
	fallbacks := services.NewFallbackService(deps, infra.Queue, services.NewHashFallbackExecutor(hasher), lockPolicy, services.FallbackPolicy{
		DefaultVersion: cfg.Fallback.DefaultVersion,
		Timeout:        cfg.Fallback.Timeout,
	})
	health := services.NewHealthService(deps, healthPolicy, lockPolicy)
	stats := services.NewStatsService(deps, fallbacks)
	jobs := services.NewJobsService(deps, namespaces, merges, fallbacks, health, services.JobsPolicy{
		NightlyConcurrency: cfg.Jobs.NightlyConcurrency,
		HealthConcurrency:  cfg.Jobs.HealthConcurrency,
		PageSize:           cfg.Jobs.PageSize,
		StaleAfter:         cfg.Jobs.StaleAfter,
		CleanupRetention:   cfg.Jobs.CleanupRetention,
		CleanupBatch:       cfg.Jobs.CleanupBatch,
	})

	return Services{
		Namespaces: namespaces,
		Merges:     merges,
		Fallbacks:  fallbacks,
		Health:     health,
		Stats:      stats,
		Jobs:       jobs,
	}, nil
}
