package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/calebross/markethub/internal/identity"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (identity.Claims, error)
}

type AuthMiddleware struct {
	provider TokenVerifier
}

func NewAuthMiddleware(provider TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{provider: provider}
}

// RequireAuth is the token gate in front of every product route. The header
// must carry a "Bearer " prefix; the remainder goes to the identity provider
// for verification. Verification failures are not distinguished to the
// caller. On success the decoded claims are stashed on the context so
// handlers never re-verify the token themselves.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is missing or invalid",
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is missing or invalid",
			})
			return
		}

		claims, err := m.provider.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		// Stash the verified identity on the context
		c.Set(string(CtxUserID), claims.UserID)
		c.Set(string(CtxEmail), claims.Email)

		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(string(CtxUserID))
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func EmailFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(string(CtxEmail))
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
