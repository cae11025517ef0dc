package modules

import (
	"strings"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Store:            infra.Store,
		Audit:            infra.AuditLogger,
		BackfillPoolSize: cfg.Worker.BackfillPoolSize,
		MaxWebhookBytes:  cfg.Server.MaxWebhookBytes,
		WebhookTimeout:   cfg.Server.WebhookTimeout,
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// NewJWTConfig derives the API token settings from security config.
func NewJWTConfig(cfg config.SecurityConfig) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.JWTVerificationKeys))
	for _, key := range cfg.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.JWTSigningKey),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.JWTIssuer,
	}
}
