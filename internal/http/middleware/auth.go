// Package middleware's AuthMiddleware defines the Go-side seam spec §1
// calls out as an external collaborator: HTTP auth/rate-limiting is not
// this core's concern. This middleware only resolves the opaque API
// identity that collaborator is assumed to have already attached
// upstream (as an integer key, per §3's "API identity" definition) and
// forwards it into ctxutil.RequestData for handlers and Job Store writes
// — it never interprets scopes itself.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/platform/ctxutil"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
)

const headerAPIKeyID = "X-Api-Key-Id"

type AuthMiddleware struct {
	log *logger.Logger
}

func NewAuthMiddleware(log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("component", "AuthMiddleware")}
}

// RequireAuth resolves the already-authenticated caller identity. A
// missing or malformed identity header means the upstream auth
// collaborator never ran (or rejected the request before it reached
// here) — this core surfaces that as 401 rather than guessing.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerAPIKeyID))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing resolved API identity", "code": "unauthorized"},
			})
			return
		}
		apiKeyID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid API identity", "code": "unauthorized"},
			})
			return
		}

		scopes := splitScopes(c.GetHeader("X-Api-Scopes"))
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			APIKeyID: apiKeyID,
			Scopes:   scopes,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func splitScopes(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
