package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
)

const headerActor = "X-Actor"

// AttachActor records the caller named by X-Actor as the created_by of audit entries.
// Requests without the header fall back to defaultActor.
func AttachActor(defaultActor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(headerActor)
		if actor == "" {
			actor = defaultActor
		}
		c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
