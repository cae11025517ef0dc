// Package handlers implements the HTTP surface: the ATS webhook ingress, the
// dashboard-facing /api/v1 operations and health probes.
//
// Request and response shapes for /api/v1 are fixed by the embedded OpenAPI
// contract; the validator middleware enforces them before handlers run.
//
// Import Path: hireguard.io/atssync/internal/api/handlers
package handlers

import (
	"context"
	"time"

	"hireguard.io/atssync/internal/compliance"
	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
	"hireguard.io/atssync/internal/usecase"
	"hireguard.io/atssync/internal/webhook"
)

// Store is the persistence the handlers read and write directly.
type Store interface {
	Ping(ctx context.Context) error
	GetIntegration(ctx context.Context, id string) (*domain.Integration, error)
	CreateIntegration(ctx context.Context, i *domain.Integration) (reconnected bool, err error)
	GetComplianceProfile(ctx context.Context, orgID string) (*domain.ComplianceProfile, error)
	UpsertComplianceProfile(ctx context.Context, p *domain.ComplianceProfile) error
	ListAuditEvents(ctx context.Context, orgID string, filter repository.AuditFilter) ([]domain.AuditEvent, error)
}

// Pipeline is implemented by *usecase.Orchestrator.
type Pipeline interface {
	HandleEvent(ctx context.Context, ev *domain.WebhookEvent) usecase.Result
	Disconnect(ctx context.Context, integ *domain.Integration, source string) error
	Backfill(ctx context.Context, integrationID string, opts usecase.BackfillOptions) (*usecase.BackfillReport, error)
}

// AccountClient covers the provider's account-lifecycle endpoints.
type AccountClient interface {
	CreateLinkToken(ctx context.Context, req provider.LinkTokenRequest) (*provider.LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*provider.AccountToken, error)
	GetAccountDetails(ctx context.Context) (*provider.AccountDetails, error)
	DeleteAccount(ctx context.Context) error
}

// AccountClientFactory binds an AccountClient to a linked account. An empty
// token yields a client for the unbound endpoints (link token, exchange).
type AccountClientFactory func(accountToken string) AccountClient

// BackfillQueue hands backfills to the job queue. When nil, backfills run
// inline in the request.
type BackfillQueue interface {
	EnqueueBackfill(ctx context.Context, integrationID string, since *time.Time) (jobID int64, duplicate bool, err error)
}

// Server holds the handler dependencies.
type Server struct {
	store           Store
	pipeline        Pipeline
	accounts        AccountClientFactory
	verifier        *webhook.Verifier
	audit           *audit.Logger
	catalog         *compliance.Catalog
	backfills       BackfillQueue
	backfillPool    int
	maxWebhookBytes int64
	webhookTimeout  time.Duration
	now             func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Store    Store
	Pipeline Pipeline
	Accounts AccountClientFactory
	Verifier *webhook.Verifier
	Audit    *audit.Logger
	// Catalog validates jurisdiction codes in compliance profiles.
	Catalog   *compliance.Catalog
	Backfills BackfillQueue
	// BackfillPoolSize is used for inline backfills.
	BackfillPoolSize int
	MaxWebhookBytes  int64
	WebhookTimeout   time.Duration
}

const (
	defaultMaxWebhookBytes = 5 << 20
	defaultWebhookTimeout  = 45 * time.Second
)

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	if deps.MaxWebhookBytes <= 0 {
		deps.MaxWebhookBytes = defaultMaxWebhookBytes
	}
	if deps.WebhookTimeout <= 0 {
		deps.WebhookTimeout = defaultWebhookTimeout
	}
	return &Server{
		store:           deps.Store,
		pipeline:        deps.Pipeline,
		accounts:        deps.Accounts,
		verifier:        deps.Verifier,
		audit:           deps.Audit,
		catalog:         deps.Catalog,
		backfills:       deps.Backfills,
		backfillPool:    deps.BackfillPoolSize,
		maxWebhookBytes: deps.MaxWebhookBytes,
		webhookTimeout:  deps.WebhookTimeout,
		now:             time.Now,
	}
}

// ProviderAccounts adapts a *provider.Client to AccountClientFactory.
func ProviderAccounts(base *provider.Client) AccountClientFactory {
	return func(accountToken string) AccountClient {
		if accountToken == "" {
			return base
		}
		return base.ForAccount(accountToken)
	}
}

var (
	_ Store    = (*repository.PostgresStore)(nil)
	_ Store    = (*repository.MemoryStore)(nil)
	_ Pipeline = (*usecase.Orchestrator)(nil)
)
