package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const contextKeyCredentialID = "credential_id"
const contextKeyPermissions = "permissions"

// Authenticator is the subset of authn.Authenticator the middleware needs.
type Authenticator interface {
	Verify(ctx context.Context, token string) (credentialID uuid.UUID, permissions []string, err error)
}

// authMiddleware extracts a bearer token, authenticates it, and stores the
// resulting credential identity on the gin context for handlers to use.
func authMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			fail(c, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			c.Abort()
			return
		}

		credentialID, permissions, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			failFromError(c, err)
			c.Abort()
			return
		}

		c.Set(contextKeyCredentialID, credentialID)
		c.Set(contextKeyPermissions, permissions)
		c.Next()
	}
}

// bearerToken extracts the token from a standard "Authorization: Bearer
// <token>" header, or the empty string if absent or malformed.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// requirePermission aborts the request with 403 unless the authenticated
// credential carries perm or the "admin" permission.
func requirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, _ := c.Get(contextKeyPermissions)
		list, _ := perms.([]string)
		for _, p := range list {
			if p == perm || p == "admin" {
				c.Next()
				return
			}
		}
		fail(c, http.StatusForbidden, "forbidden", "credential lacks required permission: "+perm)
		c.Abort()
	}
}
