package app

import (
	"context"
	"fmt"
	"time"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/http"
	"github.com/yungbote/namespace-orchestrator/internal/jobs/scheduler"
	"github.com/yungbote/namespace-orchestrator/internal/jobs/worker"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx/temporalworker"

	temporalsdkclient "go.temporal.io/sdk/client"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Infra    *Infra
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	workers  *worker.Pool
	ticker   *scheduler.Ticker
	temporal temporalsdkclient.Client
	tworker  *temporalworker.Runner

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.Otel.Enabled,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
		Version:     cfg.Otel.Version,
		Endpoint:    cfg.Otel.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Otel.Headers),
		Insecure:    cfg.Otel.Insecure,
		SampleRatio: cfg.Otel.SampleRatio,
	})

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	infra, err := wireInfra(ctx, log, cfg, metrics)
	if err != nil {
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	svc, err := wireServices(log, cfg, infra, metrics)
	if err != nil {
		infra.Close()
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, err
	}

	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		infra.Close()
		_ = otelShutdown(ctx)
		log.Sync()
		return nil, fmt.Errorf("init temporal: %w", err)
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Infra:        infra,
		Services:     svc,
		Metrics:      metrics,
		Server:       wireServer(log, cfg, svc, infra, metrics),
		temporal:     tc,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background machinery: fallback consumers, the sweep scheduler and collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// Receipts whose push was lost before a restart go back on the queue. The in-memory queue
	// starts empty, so every queued receipt is pushed; a Redis list survives restarts.
	var requeueBefore time.Time
	if a.Infra.Redis != nil {
		requeueBefore = time.Now().Add(-a.Cfg.Jobs.StaleAfter)
	}
	if n, err := a.Services.Fallbacks.RequeueQueued(ctx, requeueBefore); err != nil {
		a.Log.Warn("Fallback requeue on startup failed", "error", err)
	} else if n > 0 {
		a.Log.Info("Requeued fallback operations", "count", n)
	}

	a.workers = worker.NewPool(a.Log, a.Infra.Queue, a.Services.Fallbacks, worker.Config{
		Concurrency:  a.Cfg.Fallback.Workers,
		PopWait:      a.Cfg.Fallback.PopWait,
		RequeueDelay: a.Cfg.Fallback.RequeueDelay,
	})
	a.workers.Start(ctx)

	if a.temporal != nil {
		if err := temporalx.EnsureSchedules(ctx, a.temporal, a.Log, a.Cfg.Temporal); err != nil {
			return fmt.Errorf("temporal schedules: %w", err)
		}
		runner, err := temporalworker.NewRunner(a.Log, a.temporal, a.Cfg.Temporal, a.Services.Jobs)
		if err != nil {
			return err
		}
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("temporal worker: %w", err)
		}
		a.tworker = runner
	} else {
		a.ticker = scheduler.NewTicker(a.Log, a.Services.Jobs, map[string]time.Duration{
			domain.JobNightlyMerge: a.Cfg.Jobs.NightlyMergeInterval,
			domain.JobHealthCheck:  a.Cfg.Jobs.HealthCheckInterval,
			domain.JobCleanup:      a.Cfg.Jobs.CleanupInterval,
		})
		a.ticker.Start(ctx)
	}

	if a.Metrics != nil {
		interval := a.Cfg.Metrics.CollectInterval
		a.Metrics.StartDBCollector(ctx, a.Log, a.Infra.DB, interval)
		if a.Infra.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Infra.Redis, interval)
		}
		a.Metrics.StartQueueDepthCollector(ctx, a.Log, a.Services.Fallbacks.QueueDepth, interval)
		if a.Cfg.Metrics.Addr != "" {
			a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Server.Run(":" + a.Cfg.Port)
}

// Close drains HTTP first, then background workers, then the stores they use.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.Cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Log.Warn("HTTP shutdown failed", "error", err)
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.ticker != nil {
		_ = a.ticker.Close()
	}
	if a.workers != nil {
		_ = a.workers.Close()
	}
	if a.tworker != nil {
		a.tworker.Close()
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	a.Infra.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
