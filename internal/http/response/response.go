package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/namespace-orchestrator/internal/platform/apierr"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes a mapped error and records it on the gin context for the request logger.
func RespondAPIError(c *gin.Context, e *apierr.Error) {
	if e == nil {
		e = apierr.New(http.StatusInternalServerError, "internal", nil)
	}
	if e.Err != nil {
		_ = c.Error(e.Err)
	}
	msg := e.Error()
	if e.Status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(e.Status, ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      e.Code,
			Retryable: e.Retryable,
		},
	})
}

func RespondDomainError(c *gin.Context, err error) {
	RespondAPIError(c, apierr.FromDomain(err))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
