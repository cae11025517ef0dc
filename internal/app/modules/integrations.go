package modules

import (
	"context"

	"github.com/riverqueue/river"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/webhook"
)

// IntegrationsModule contributes account linking and webhook verification.
type IntegrationsModule struct {
	infra *Infrastructure
}

func NewIntegrationsModule(infra *Infrastructure) *IntegrationsModule {
	return &IntegrationsModule{infra: infra}
}

func (m *IntegrationsModule) Name() string { return "integrations" }

func (m *IntegrationsModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Accounts = handlers.ProviderAccounts(m.infra.Provider)
	deps.Verifier = webhook.NewVerifier(m.infra.Config.Merge.WebhookSecret)
	deps.Catalog = m.infra.Catalog
}

func (m *IntegrationsModule) RegisterWorkers(_ *river.Workers) {}

func (m *IntegrationsModule) Shutdown(context.Context) error { return nil }
