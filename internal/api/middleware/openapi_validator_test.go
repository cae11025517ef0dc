package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTrimBasePath(t *testing.T) {
	testCases := []struct {
		name     string
		basePath string
		path     string
		want     string
	}{
		{name: "strip prefix", basePath: "/api/v1", path: "/api/v1/integrations/link-token", want: "/integrations/link-token"},
		{name: "root path", basePath: "/api/v1", path: "/api/v1", want: "/"},
		{name: "no match", basePath: "/api/v1", path: "/webhooks/merge", want: "/webhooks/merge"},
		{name: "root base", basePath: "/", path: "/integrations", want: "/integrations"},
		{name: "partial segment", basePath: "/api/v1", path: "/api/v10/audit", want: "/api/v10/audit"},
		{name: "empty raw path", basePath: "/api/v1", path: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := trimBasePath(tc.basePath, tc.path)
			assert.Equal(t, tc.want, got)
		})
	}
}

// validatedRouter mounts the validator behind a fake authenticated caller.
func validatedRouter(authenticated bool) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if authenticated {
			c.Request = c.Request.WithContext(SetCallerContext(c.Request.Context(), "user-1", "org-1", []string{ScopeAdmin}))
		}
		c.Next()
	})
	router.Use(MustOpenAPIValidator("/api/v1"))
	return router
}

func TestOpenAPIValidatorRejectsInvalidLinkRequest(t *testing.T) {
	router := validatedRouter(true)
	called := false
	router.POST("/api/v1/integrations", func(c *gin.Context) {
		called = true
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations", bytes.NewBufferString(`{"organization_id":"org-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
	assert.Contains(t, w.Body.String(), "OPENAPI_REQUEST_INVALID")
}

func TestOpenAPIValidatorRequiresCaller(t *testing.T) {
	router := validatedRouter(false)
	router.GET("/api/v1/audit/verify", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"organization_id": "org-1", "events": 0, "valid": true})
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/audit/verify?organization_id=org-1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOpenAPIValidatorAcceptsValidExchange(t *testing.T) {
	router := validatedRouter(true)
	router.GET("/api/v1/integrations/:integration_id", func(c *gin.Context) {
		now := time.Now().UTC().Format(time.RFC3339)
		c.JSON(http.StatusOK, gin.H{
			"id":              c.Param("integration_id"),
			"organization_id": "org-1",
			"provider_slug":   "greenhouse",
			"status":          "connected",
			"created_at":      now,
			"updated_at":      now,
		})
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/integrations/int-1", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"int-1"`)
}

func TestOpenAPIValidatorReplacesNonConformingResponse(t *testing.T) {
	router := validatedRouter(true)
	router.GET("/api/v1/integrations/:integration_id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("integration_id"), "status": "paused"})
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/integrations/int-1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "OPENAPI_RESPONSE_INVALID")
}

func TestOpenAPIValidatorPassesUndocumentedPaths(t *testing.T) {
	router := validatedRouter(false)
	router.POST("/webhooks/merge", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"received": true})
	})

	w := serve(router, httptest.NewRequest(http.MethodPost, "/webhooks/merge", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
