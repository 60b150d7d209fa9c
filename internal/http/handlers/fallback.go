package handlers

import (
	"github.com/gin-gonic/gin"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/platform/apierr"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type FallbackHandler struct {
	fallbacks services.FallbackService
}

func NewFallbackHandler(fallbacks services.FallbackService) *FallbackHandler {
	return &FallbackHandler{fallbacks: fallbacks}
}

type initiateFallbackRequest struct {
	Reason          string  `json:"reason"`
	FallbackVersion *string `json:"fallback_version"`
}

// POST /api/v1/namespaces/:owner_id/fallback
func (h *FallbackHandler) Initiate(c *gin.Context) {
	var req initiateFallbackRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	id, err := h.fallbacks.InitiateFallbackRecovery(c.Request.Context(), ownerParam(c), req.Reason, req.FallbackVersion)
	if err != nil {
		response.RespondAPIError(c, apierr.FromDomain(err).MissingAsBadRequest())
		return
	}
	response.RespondOK(c, gin.H{"operation_id": id})
}

// GET /api/v1/fallback-operations/:id
func (h *FallbackHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	op, err := h.fallbacks.GetFallbackOperation(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if op == nil {
		response.RespondDomainError(c, domain.NewError(domain.CodeNotFound, "fallback.get", "fallback operation not found", nil))
		return
	}
	response.RespondOK(c, op)
}
