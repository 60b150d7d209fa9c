package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/namespace-orchestrator/internal/domain"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/services"
)

type NamespaceHandler struct {
	namespaces services.NamespaceService
	health     services.HealthService
}

func NewNamespaceHandler(namespaces services.NamespaceService, health services.HealthService) *NamespaceHandler {
	return &NamespaceHandler{namespaces: namespaces, health: health}
}

type createNamespaceRequest struct {
	OwnerID                string          `json:"owner_id"`
	BaseVersion            string          `json:"base_version"`
	InitialPrompt          string          `json:"initial_prompt"`
	Config                 json.RawMessage `json:"config"`
	GuardianProtectedUntil *time.Time      `json:"guardian_protected_until"`
}

// POST /api/v1/namespaces
func (h *NamespaceHandler) Create(c *gin.Context) {
	var req createNamespaceRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	ns, err := h.namespaces.CreateNamespace(c.Request.Context(), services.CreateNamespaceInput{
		OwnerID:                req.OwnerID,
		BaseVersion:            req.BaseVersion,
		InitialPrompt:          req.InitialPrompt,
		Config:                 req.Config,
		GuardianProtectedUntil: req.GuardianProtectedUntil,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, ns)
}

// GET /api/v1/namespaces/:owner_id
func (h *NamespaceHandler) Get(c *gin.Context) {
	ns, err := h.namespaces.GetNamespace(c.Request.Context(), ownerParam(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if ns == nil {
		response.RespondDomainError(c, domain.NewError(domain.CodeNotFound, "namespace.get", "namespace not found", nil))
		return
	}
	response.RespondOK(c, ns)
}

// GET /api/v1/namespaces?status=&limit=&offset=
func (h *NamespaceHandler) List(c *gin.Context) {
	limit, err := intQuery(c, "limit", domain.DefaultListLimit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	out, err := h.namespaces.ListNamespaces(c.Request.Context(), types.ListFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// DELETE /api/v1/namespaces/:owner_id?force=
func (h *NamespaceHandler) Delete(c *gin.Context) {
	deleted, err := h.namespaces.DeleteNamespace(c.Request.Context(), ownerParam(c), boolQuery(c, "force"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !deleted {
		response.RespondDomainError(c, domain.NewError(domain.CodeNotFound, "namespace.delete", "namespace not found", nil))
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/namespaces/:owner_id/health
func (h *NamespaceHandler) Health(c *gin.Context) {
	out, err := h.health.CheckHealth(c.Request.Context(), ownerParam(c))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}

type ackRequest struct {
	Version int64 `json:"version"`
}

// POST /api/v1/namespaces/:owner_id/ack
func (h *NamespaceHandler) Acknowledge(c *gin.Context) {
	var req ackRequest
	if err := bindJSON(c, &req); err != nil {
		response.RespondDomainError(c, err)
		return
	}
	ns, err := h.namespaces.AcknowledgeVersion(c.Request.Context(), ownerParam(c), req.Version)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, ns)
}

// GET /api/v1/namespaces/:owner_id/events?event_type=&limit=
func (h *NamespaceHandler) Events(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	out, err := h.namespaces.ListEvents(c.Request.Context(), ownerParam(c), c.Query("event_type"), limit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, out)
}
