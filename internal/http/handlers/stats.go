package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type StatsHandler struct {
	stats services.StatsService
}

func NewStatsHandler(stats services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GET /api/v1/namespaces/:owner_id/stats
func (h *StatsHandler) Namespace(c *gin.Context) {
	out, err := h.stats.NamespaceStats(c.Request.Context(), ownerParam(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/stats/global
func (h *StatsHandler) Global(c *gin.Context) {
	out, err := h.stats.GlobalStats(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}
