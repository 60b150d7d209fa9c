package handlers

import (
	"github.com/gin-gonic/gin"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/platform/apierr"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type MergeHandler struct {
	merges services.MergeService
}

func NewMergeHandler(merges services.MergeService) *MergeHandler {
	return &MergeHandler{merges: merges}
}

type triggerMergeRequest struct {
	OperationType string `json:"operation_type"`
	Force         bool   `json:"force"`
	Execute       bool   `json:"execute"`
}

// POST /api/v1/namespaces/:owner_id/merge
// With execute=true the merge runs inline and the terminal operation is returned.
func (h *MergeHandler) Trigger(c *gin.Context) {
	var req triggerMergeRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	if req.Execute {
		op, err := h.merges.RunMerge(ctx, ownerParam(c), req.OperationType, req.Force)
		if err != nil {
			response.RespondAPIError(c, apierr.FromDomain(err).MissingAsBadRequest())
			return
		}
		response.RespondOK(c, op)
		return
	}
	op, err := h.merges.TriggerMerge(ctx, ownerParam(c), req.OperationType, req.Force)
	if err != nil {
		response.RespondAPIError(c, apierr.FromDomain(err).MissingAsBadRequest())
		return
	}
	response.RespondOK(c, op)
}

// POST /api/v1/merge-operations/:id/execute
func (h *MergeHandler) Execute(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.merges.ExecuteMerge(ctx, id); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	op, err := h.merges.GetMergeOperation(ctx, id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, op)
}

// GET /api/v1/namespaces/:owner_id/merge-operations
func (h *MergeHandler) List(c *gin.Context) {
	out, err := h.merges.ListMergeOperations(c.Request.Context(), ownerParam(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/v1/merge-operations/:id
func (h *MergeHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	op, err := h.merges.GetMergeOperation(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if op == nil {
		response.RespondDomainError(c, domain.NewError(domain.CodeNotFound, "merge.get", "merge operation not found", nil))
		return
	}
	response.RespondOK(c, op)
}
