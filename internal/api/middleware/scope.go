package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
)

// Scopes granted to dashboard callers.
const (
	// ScopeAdmin is the operator scope: every other scope, every organization.
	ScopeAdmin = "atssync:admin"

	ScopeIntegrationsRead  = "integrations:read"
	ScopeIntegrationsWrite = "integrations:write"
	ScopeAuditRead         = "audit:read"
)

// HasScope reports whether the caller in ctx holds scope (or ScopeAdmin).
func HasScope(ctx context.Context, scope string) bool {
	scopes := GetScopes(ctx)
	return slices.Contains(scopes, ScopeAdmin) || slices.Contains(scopes, scope)
}

// RequireScope rejects callers that do not hold scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSubject(c.Request.Context()) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": apperrors.CodeForbidden, "message": "not authenticated",
			})
			return
		}
		if !HasScope(c.Request.Context(), scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": apperrors.CodeForbidden, "message": "insufficient scope",
			})
			return
		}
		c.Next()
	}
}

// AuthorizeOrganization returns an AppError unless the caller in ctx may act
// on organizationID. Handlers call it once the target record is loaded,
// since the organization of an integration is only known after lookup.
func AuthorizeOrganization(ctx context.Context, organizationID string) error {
	if slices.Contains(GetScopes(ctx), ScopeAdmin) {
		return nil
	}
	caller := GetOrganizationID(ctx)
	if caller == "" || caller != organizationID {
		return apperrors.Forbidden(apperrors.CodeOrganizationScope, "caller may not access this organization").
			WithParams(map[string]interface{}{"organization_id": organizationID})
	}
	return nil
}
