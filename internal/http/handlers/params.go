package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
)

func ownerParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("owner_id"))
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return uuid.Nil, domain.NewError(domain.CodeValidation, "http", "invalid "+name, err)
	}
	return id, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewError(domain.CodeValidation, "http", "invalid "+name, err)
	}
	return n, nil
}

func boolQuery(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return v
}

// bindJSON tolerates an empty body; malformed JSON is a validation error.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return domain.NewError(domain.CodeValidation, "http", "invalid request body", err)
	}
	return nil
}
