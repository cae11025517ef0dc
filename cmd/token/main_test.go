package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/app/modules"
	"hireguard.io/atssync/internal/config"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "org scoped", args: []string{"-subject", "dashboard", "-org", "org-1", "-scopes", "integrations:read, audit:read"}},
		{name: "admin without org", args: []string{"-subject", "ops", "-scopes", middleware.ScopeAdmin}},
		{name: "missing subject", args: []string{"-org", "org-1", "-scopes", "x"}, wantErr: "-subject"},
		{name: "missing scopes", args: []string{"-subject", "s", "-org", "org-1", "-scopes", " , "}, wantErr: "-scopes"},
		{name: "missing org", args: []string{"-subject", "s", "-scopes", middleware.ScopeAuditRead}, wantErr: "-org"},
		{name: "bad ttl", args: []string{"-subject", "s", "-org", "o", "-scopes", "x", "-ttl", "-1m"}, wantErr: "-ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMint_RoundTrip(t *testing.T) {
	sec := config.SecurityConfig{
		JWTSigningKey: "token-cmd-signing-key-0123456789abcdef",
		JWTIssuer:     "atssync",
	}
	opts, err := parseArgs([]string{"-subject", "dashboard", "-org", "org-1", "-scopes", "integrations:read", "-ttl", "10m"})
	require.NoError(t, err)

	tok, expiresAt, err := mint(sec, opts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := modules.NewJWTConfig(sec).ValidateToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, []string{"integrations:read"}, claims.Scopes)
}
