package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// identityKey is the Gin context key holding the resolved session email.
	identityKey = "userEmail"

	// SessionCookie is the cookie carrying the opaque session token.
	SessionCookie = "rr_auth_token"
)

// SessionResolver resolves an opaque session token to the owning email.
// A false return means the token is absent, expired, or unknown; the
// resolver never distinguishes which.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, bool)
}

// RequireSession rejects requests that do not carry a resolvable session
// with a 401 JSON error. On success the session email is stored in the
// Gin context for handlers to read via Identity().
//
// The token is read from the session cookie first, then from a bearer
// Authorization header, so browser clients and API clients share one
// guard.
func RequireSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		// An earlier OptionalSession may have resolved the token already.
		if _, done := Identity(c); done {
			c.Next()
			return
		}
		email, ok := resolveSession(c, sessions)
		if !ok {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": asString(rid),
				"code":       "unauthorized",
				"message":    "authentication required",
			})
			return
		}
		c.Set(identityKey, email)
		c.Next()
	}
}

// OptionalSession resolves the session when present but never rejects.
// Handlers that serve both anonymous and signed-in callers use it.
func OptionalSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if email, ok := resolveSession(c, sessions); ok {
			c.Set(identityKey, email)
		}
		c.Next()
	}
}

// Identity returns the session email stored by RequireSession or
// OptionalSession; false when the request is anonymous.
func Identity(c *gin.Context) (string, bool) {
	email := c.GetString(identityKey)
	return email, email != ""
}

func resolveSession(c *gin.Context, sessions SessionResolver) (string, bool) {
	token := sessionToken(c)
	if token == "" {
		return "", false
	}
	return sessions.Resolve(c.Request.Context(), token)
}

// sessionToken extracts the opaque token from the cookie or, failing
// that, from "Authorization: Bearer <token>".
func sessionToken(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
