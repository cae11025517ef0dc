package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hireguard.io/atssync/internal/governance/audit"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID    contextKey = "request_id"
	ctxKeySubject      contextKey = "subject"
	ctxKeyOrganization contextKey = "organization_id"
	ctxKeyScopes       contextKey = "scopes"
)

// RequestID injects a unique request ID into the context and response header.
// The id is also attached to every audit event recorded while serving the
// request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		ctx := context.WithValue(c.Request.Context(), ctxKeyRequestID, rid)
		c.Request = c.Request.WithContext(audit.WithRequestID(ctx, rid))
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// SetCallerContext stores the authenticated dashboard caller in context.
func SetCallerContext(ctx context.Context, subject, organizationID string, scopes []string) context.Context {
	ctx = context.WithValue(ctx, ctxKeySubject, subject)
	ctx = context.WithValue(ctx, ctxKeyOrganization, organizationID)
	ctx = context.WithValue(ctx, ctxKeyScopes, scopes)
	return ctx
}

// GetSubject extracts the caller subject (user or service id) from context.
func GetSubject(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySubject).(string); ok {
		return v
	}
	return ""
}

// GetOrganizationID extracts the caller's organization from context.
func GetOrganizationID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOrganization).(string); ok {
		return v
	}
	return ""
}

// GetScopes extracts the caller's granted scopes from context.
func GetScopes(ctx context.Context) []string {
	if v, ok := ctx.Value(ctxKeyScopes).([]string); ok {
		return v
	}
	return nil
}
