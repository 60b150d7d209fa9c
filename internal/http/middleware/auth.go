package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/namespace-orchestrator/internal/http/response"
	"github.com/yungbote/namespace-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

const AdminRole = "admin"

// AdminClaims are HS256 tokens minted by the operator tooling.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth guards the admin job routes. With an empty secret every request passes.
type AdminAuth struct {
	log    *logger.Logger
	secret []byte
}

func NewAdminAuth(log *logger.Logger, secret string) *AdminAuth {
	return &AdminAuth{log: log.With("Middleware", "AdminAuth"), secret: []byte(strings.TrimSpace(secret))}
}

func (a *AdminAuth) Enabled() bool { return a != nil && len(a.secret) > 0 }

func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			c.Abort()
			return
		}
		claims, err := a.parse(tokenString)
		if err != nil {
			a.log.Debug("Admin token rejected", "error", err)
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			c.Abort()
			return
		}
		if claims.Role != AdminRole {
			response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("admin role required"))
			c.Abort()
			return
		}
		if claims.Subject != "" {
			c.Request = c.Request.WithContext(ctxutil.WithActor(c.Request.Context(), claims.Subject))
		}
		c.Next()
	}
}

func (a *AdminAuth) parse(tokenString string) (*AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*AdminClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

// SignAdminToken mints an admin token; used by tests and the local tooling.
func SignAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
