package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

func newAdminRouter(secret string) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	seen := new(string)
	r := gin.New()
	r.Use(AttachActor(ctxutil.ActorSystem))
	r.POST("/admin", NewAdminAuth(logger.Nop(), secret).RequireAdmin(), func(c *gin.Context) {
		*seen = ctxutil.Actor(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r, seen
}

func doAdmin(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminAuthDisabledWithoutSecret(t *testing.T) {
	r, _ := newAdminRouter("")
	if got := doAdmin(r, ""); got != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", got)
	}
}

func TestAdminAuthRequiresValidToken(t *testing.T) {
	r, seen := newAdminRouter("s3cret")
	if got := doAdmin(r, ""); got != http.StatusUnauthorized {
		t.Fatalf("missing token: want=401 got=%d", got)
	}
	bad, _ := SignAdminToken("other", "ops", time.Minute)
	if got := doAdmin(r, bad); got != http.StatusUnauthorized {
		t.Fatalf("wrong secret: want=401 got=%d", got)
	}
	expired, _ := SignAdminToken("s3cret", "ops", -time.Minute)
	if got := doAdmin(r, expired); got != http.StatusUnauthorized {
		t.Fatalf("expired: want=401 got=%d", got)
	}
	good, err := SignAdminToken("s3cret", "ops", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := doAdmin(r, good); got != http.StatusOK {
		t.Fatalf("valid token: want=200 got=%d", got)
	}
	if *seen != "ops" {
		t.Fatalf("actor: want=ops got=%q", *seen)
	}
}

func TestAttachActorAndTrace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var actor, requestID string
	r := gin.New()
	r.Use(AttachTraceContext(), AttachActor("api"))
	r.GET("/x", func(c *gin.Context) {
		actor = ctxutil.Actor(c.Request.Context())
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			requestID = td.RequestID
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Actor", "alice")
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if actor != "alice" || requestID != "req-1" {
		t.Fatalf("context: want=alice/req-1 got=%s/%s", actor, requestID)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("echoed request id: want=req-1 got=%q", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if actor != "api" {
		t.Fatalf("default actor: want=api got=%q", actor)
	}
}
