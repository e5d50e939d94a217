// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates requests carrying a session token. The token is
// read from "Authorization: Bearer <jwt>", verified, and its subject is
// stored in the Gin context under "userID" (and "username"), which is where
// the rate limiter, loggers and handlers look for the caller's identity.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/auth"
)

const (
	// CtxUserID holds the authenticated user id.
	CtxUserID = "userID"
	// CtxUsername holds the authenticated username.
	CtxUsername = "username"
)

// TokenParser verifies a session token and returns its claims.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token with 401.
func RequireAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, p)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="kala"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Next()
	}
}

// OptionalAuth records the caller's identity when a valid token is present
// and lets anonymous requests through unchanged.
func OptionalAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, p); ok {
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxUsername, claims.Username)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, p TokenParser) (*auth.Claims, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil, false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, false
	}
	claims, err := p.Parse(tok)
	if err != nil || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(CtxUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
