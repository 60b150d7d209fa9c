package services

import (
	"context"
	"strings"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type StatsService interface {
	NamespaceStats(ctx context.Context, ownerID string) (*types.NamespaceStats, error)
	GlobalStats(ctx context.Context) (*types.GlobalStats, error)
}

// QueueDepthReader is satisfied by FallbackService.
type QueueDepthReader interface {
	QueueDepth(ctx context.Context) (int64, error)
}

type statsService struct {
	deps  Deps
	log   *logger.Logger
	queue QueueDepthReader
}

func NewStatsService(deps Deps, queue QueueDepthReader) StatsService {
	deps = deps.withDefaults()
	return &statsService{
		deps:  deps,
		log:   deps.Log.With("service", "StatsService"),
		queue: queue,
	}
}

func (s *statsService) NamespaceStats(ctx context.Context, ownerID string) (*types.NamespaceStats, error) {
	const op = "stats.namespace"
	dbc := dbctx.Context{Ctx: ctx}
	ns, err := s.deps.Namespaces.GetLiveByOwner(dbc, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	if ns == nil {
		return nil, domain.NewError(domain.CodeNotFound, op, "namespace not found", nil)
	}
	merges, err := s.deps.Merges.CountByStatus(dbc, &ns.ID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	fallbacks, err := s.deps.Fallbacks.CountByStatus(dbc, &ns.ID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	events, err := s.deps.Events.CountByNamespace(dbc, ns.ID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	lastEvent, err := s.deps.Events.LastAt(dbc, ns.ID)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	return &types.NamespaceStats{
		NamespaceID:        ns.ID,
		OwnerID:            ns.OwnerID,
		Status:             ns.Status,
		VersionCount:       ns.VersionCount,
		VersionLag:         ns.VersionLag(),
		MergeOperations:    merges,
		FallbackOperations: fallbacks,
		EventCount:         events,
		LastMergeAt:        ns.LastMergeAt,
		LastEventAt:        lastEvent,
		CreatedAt:          ns.CreatedAt,
	}, nil
}

func (s *statsService) GlobalStats(ctx context.Context) (*types.GlobalStats, error) {
	const op = "stats.global"
	dbc := dbctx.Context{Ctx: ctx}
	namespaces, err := s.deps.Namespaces.CountByStatus(dbc)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	merges, err := s.deps.Merges.CountByStatus(dbc, nil)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	fallbacks, err := s.deps.Fallbacks.CountByStatus(dbc, nil)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	events, err := s.deps.Events.CountTotal(dbc)
	if err != nil {
		return nil, domain.Wrap(domain.CodeInternal, op, err)
	}
	var depth int64
	if s.queue != nil {
		if depth, err = s.queue.QueueDepth(ctx); err != nil {
			s.log.Warn("queue depth unavailable", "error", err)
			depth = -1
		}
	}
	var total int64
	for status, n := range namespaces {
		if status != domain.NamespaceStatusDeleted {
			total += n
		}
	}
	return &types.GlobalStats{
		TotalNamespaces:    total,
		Namespaces:         namespaces,
		MergeOperations:    merges,
		FallbackOperations: fallbacks,
		FallbackQueueDepth: depth,
		TotalEvents:        events,
		GeneratedAt:        s.deps.now(),
	}, nil
}
