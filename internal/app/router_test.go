package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/compliance"
	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
	"hireguard.io/atssync/internal/usecase"
	"hireguard.io/atssync/internal/webhook"
)

var testJWT = middleware.JWTConfig{
	SigningKey: []byte("router-test-signing-key-0123456789abcdef"),
	Issuer:     "atssync",
}

type routerEnv struct {
	router   *gin.Engine
	store    *repository.MemoryStore
	verifier *webhook.Verifier
	integ    *domain.Integration
}

func newRouterEnv(t *testing.T, security config.SecurityConfig) *routerEnv {
	t.Helper()
	catalog, err := compliance.DefaultCatalog()
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	client := provider.NewMockClient()
	client.PutCandidate(provider.Candidate{ID: "cand-1", Locations: []string{"Chicago, IL"}})
	auditLogger := audit.NewLogger(store)
	orch := usecase.NewOrchestrator(store, func(string) usecase.ResourceClient { return client },
		compliance.NewEngine(catalog), auditLogger)

	integ := &domain.Integration{OrganizationID: "org-1", ProviderSlug: "greenhouse", LinkedAccountID: "la-1", AccountToken: "acct-tok"}
	_, err = store.CreateIntegration(context.Background(), integ)
	require.NoError(t, err)

	verifier := webhook.NewVerifier("whsec-router")
	server := handlers.NewServer(handlers.ServerDeps{
		Store:    store,
		Pipeline: orch,
		Accounts: func(string) handlers.AccountClient { return client },
		Verifier: verifier,
		Audit:    auditLogger,
		Catalog:  catalog,
	})
	cfg := &config.Config{Security: security}
	return &routerEnv{
		router:   newRouter(cfg, server, testJWT),
		store:    store,
		verifier: verifier,
		integ:    integ,
	}
}

func (e *routerEnv) do(t *testing.T, req *http.Request, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	if scopes != nil {
		tok, _, err := middleware.GenerateToken(testJWT, "user-1", "org-1", scopes)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutesSkipJWT(t *testing.T) {
	e := newRouterEnv(t, config.SecurityConfig{})

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := []byte(`{"hook":{"id":"h-1","event":"Candidate.changed"},"linked_account":{"id":"la-1","end_user_origin_id":"org-1"},"data":{"id":"cand-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/merge", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, e.verifier.Sign(body))
	w = e.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, e.store.CandidateCount())
}

func TestRouter_APIRequiresToken(t *testing.T) {
	e := newRouterEnv(t, config.SecurityConfig{})
	path := "/api/v1/integrations/" + e.integ.ID

	w := e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, httptest.NewRequest(http.MethodGet, path, nil), middleware.ScopeIntegrationsRead)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"provider_slug":"greenhouse"`)

	w = e.do(t, httptest.NewRequest(http.MethodGet, path, nil), middleware.ScopeAuditRead)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_ContractValidation(t *testing.T) {
	e := newRouterEnv(t, config.SecurityConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/integrations/link-token", bytes.NewBufferString(`{"organization_id":"org-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(t, req, middleware.ScopeIntegrationsWrite)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_LogLevelRequiresAdmin(t *testing.T) {
	e := newRouterEnv(t, config.SecurityConfig{})

	w := e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/log-level", nil), middleware.ScopeIntegrationsRead)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/admin/log-level", nil), middleware.ScopeAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "level")
}

func TestRouter_CORSPreflight(t *testing.T) {
	e := newRouterEnv(t, config.SecurityConfig{CORSAllowedOrigins: []string{"https://app.hireguard.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/integrations/"+e.integ.ID, nil)
	req.Header.Set("Origin", "https://app.hireguard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := e.do(t, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.hireguard.test", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildCORSConfig(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		wantEnabled bool
		wantAll     bool
		wantCreds   bool
		wantOrigins []string
	}{
		{name: "no origins disables cors", origins: nil},
		{name: "blank entries ignored", origins: []string{" ", ""}},
		{
			name:        "explicit origins keep credentials",
			origins:     []string{"https://app.hireguard.test/", " https://admin.hireguard.test"},
			wantEnabled: true,
			wantCreds:   true,
			wantOrigins: []string{"https://app.hireguard.test", "https://admin.hireguard.test"},
		},
		{
			name:        "wildcard drops credentials",
			origins:     []string{"*", "https://app.hireguard.test"},
			wantEnabled: true,
			wantAll:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := buildCORSConfig(config.SecurityConfig{CORSAllowedOrigins: tt.origins})
			require.Equal(t, tt.wantEnabled, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantAll, got.AllowAllOrigins)
			assert.Equal(t, tt.wantCreds, got.AllowCredentials)
			assert.Equal(t, tt.wantOrigins, got.AllowOrigins)
			assert.NoError(t, got.Validate())
		})
	}
}
