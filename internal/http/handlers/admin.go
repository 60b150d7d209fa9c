package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type AdminHandler struct {
	jobs services.JobsService
}

func NewAdminHandler(jobs services.JobsService) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

// POST /api/v1/admin/jobs/:job
// Runs a sweep synchronously and returns its result.
func (h *AdminHandler) RunJob(c *gin.Context) {
	res, err := h.jobs.RunByName(c.Request.Context(), c.Param("job"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, res)
}
