package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/namespace-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/namespace-orchestrator/internal/http/middleware"
	"github.com/yungbote/namespace-orchestrator/internal/observability"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

type RouterConfig struct {
	Log          *logger.Logger
	Metrics      *observability.Metrics
	CORSOrigins  []string
	DefaultActor string
	Tracing      bool

	AdminAuth *httpMW.AdminAuth

	NamespaceHandler *httpH.NamespaceHandler
	MergeHandler     *httpH.MergeHandler
	FallbackHandler  *httpH.FallbackHandler
	StatsHandler     *httpH.StatsHandler
	AdminHandler     *httpH.AdminHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware(observability.TracerName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachActor(cfg.DefaultActor))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")

	// Namespaces
	if cfg.NamespaceHandler != nil {
		api.POST("/namespaces", cfg.NamespaceHandler.Create)
		api.GET("/namespaces", cfg.NamespaceHandler.List)
		api.GET("/namespaces/:owner_id", cfg.NamespaceHandler.Get)
		api.DELETE("/namespaces/:owner_id", cfg.NamespaceHandler.Delete)
		api.GET("/namespaces/:owner_id/health", cfg.NamespaceHandler.Health)
		api.POST("/namespaces/:owner_id/ack", cfg.NamespaceHandler.Acknowledge)
		api.GET("/namespaces/:owner_id/events", cfg.NamespaceHandler.Events)
	}

	// Merges
	if cfg.MergeHandler != nil {
		api.POST("/namespaces/:owner_id/merge", cfg.MergeHandler.Trigger)
		api.GET("/namespaces/:owner_id/merge-operations", cfg.MergeHandler.List)
		api.GET("/merge-operations/:id", cfg.MergeHandler.Get)
		api.POST("/merge-operations/:id/execute", cfg.MergeHandler.Execute)
	}

	// Fallback
	if cfg.FallbackHandler != nil {
		api.POST("/namespaces/:owner_id/fallback", cfg.FallbackHandler.Initiate)
		api.GET("/fallback-operations/:id", cfg.FallbackHandler.Get)
	}

	// Stats
	if cfg.StatsHandler != nil {
		api.GET("/namespaces/:owner_id/stats", cfg.StatsHandler.Namespace)
		api.GET("/stats/global", cfg.StatsHandler.Global)
	}

	// Admin
	if cfg.AdminHandler != nil {
		admin := api.Group("/admin")
		if cfg.AdminAuth != nil {
			admin.Use(cfg.AdminAuth.RequireAdmin())
		}
		admin.POST("/jobs/:job", cfg.AdminHandler.RunJob)
	}

	return r
}
