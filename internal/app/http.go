package app

import (
	"context"

	"github.com/yungbote/namespace-orchestrator/internal/http"
	httpH "github.com/yungbote/namespace-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/namespace-orchestrator/internal/http/middleware"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, svc Services, infra *Infra, metrics *observability.Metrics) *http.Server {
	log.Info("Wiring HTTP server...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := infra.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if infra.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return infra.Redis.Ping(ctx).Err() }
	}
	return http.NewServer(http.RouterConfig{
		Log:              log.With("component", "HTTP"),
		Metrics:          metrics,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		DefaultActor:     cfg.HTTP.DefaultActor,
		Tracing:          cfg.Otel.Enabled,
		AdminAuth:        httpMW.NewAdminAuth(log, cfg.Admin.JWTSecret),
		NamespaceHandler: httpH.NewNamespaceHandler(svc.Namespaces, svc.Health),
		MergeHandler:     httpH.NewMergeHandler(svc.Merges),
		FallbackHandler:  httpH.NewFallbackHandler(svc.Fallbacks),
		StatsHandler:     httpH.NewStatsHandler(svc.Stats),
		AdminHandler:     httpH.NewAdminHandler(svc.Jobs),
		HealthHandler:    httpH.NewHealthHandler(checks),
	})
}
