// Package usecase provides the sync pipeline use cases.
//
// The Orchestrator turns webhook notifications, backfills and deferred
// re-syncs into normalized, flagged records and audit events. Every step is
// an upsert keyed by (organization, remote id), so redelivery converges to
// the same state and no step needs compensation.
//
// Import Path: hireguard.io/atssync/internal/usecase
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/compliance"
	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/pkg/worker"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	audit.Appender

	GetIntegration(ctx context.Context, id string) (*domain.Integration, error)
	GetIntegrationByOrganization(ctx context.Context, orgID, slug string) (*domain.Integration, error)
	GetIntegrationByLinkedAccount(ctx context.Context, linkedAccountID string) (*domain.Integration, error)
	SetIntegrationStatus(ctx context.Context, id string, status domain.IntegrationStatus) error
	MarkIntegrationSynced(ctx context.Context, id string, at time.Time) error

	UpsertCandidate(ctx context.Context, c *domain.SyncedCandidate) error
	GetCandidateByRemoteID(ctx context.Context, orgID, remoteID string) (*domain.SyncedCandidate, error)
	UpsertApplication(ctx context.Context, a *domain.SyncedApplication) error
	GetComplianceProfile(ctx context.Context, orgID string) (*domain.ComplianceProfile, error)

	RecordDeferredApplication(ctx context.Context, d *domain.DeferredApplication) error
	ListDeferredApplications(ctx context.Context, orgID, candidateRemoteID string) ([]domain.DeferredApplication, error)
	DeleteDeferredApplication(ctx context.Context, orgID, applicationRemoteID string) error
}

// ResourceClient is the subset of the ATS client used for syncing.
// *provider.Client and *provider.MockClient implement it.
type ResourceClient interface {
	GetCandidate(ctx context.Context, id string, p provider.GetParams) (*provider.Candidate, error)
	GetApplication(ctx context.Context, id string, p provider.GetParams) (*provider.Application, error)
	GetJob(ctx context.Context, id string, p provider.GetParams) (*provider.Job, error)
	GetInterviewStage(ctx context.Context, id string, p provider.GetParams) (*provider.InterviewStage, error)
	IterateCandidates(ctx context.Context, p provider.ListParams, fn func(provider.Candidate) bool) error
	IterateApplications(ctx context.Context, p provider.ListParams, fn func(provider.Application) bool) error
}

// ClientFactory returns a ResourceClient scoped to one linked account.
type ClientFactory func(accountToken string) ResourceClient

// Deferrer schedules a later re-sync of an application whose candidate was
// missing. It is optional; without one the next natural delivery retries.
type Deferrer interface {
	EnqueueApplicationResync(ctx context.Context, integrationID, applicationRemoteID string) error
}

// ErrCandidatePending is returned by SyncApplication when the referenced
// candidate is not stored yet. The application was not persisted.
var ErrCandidatePending = errors.New("application deferred: candidate not synced yet")

// ResultStatus is the outcome of one event.
type ResultStatus string

const (
	StatusProcessed ResultStatus = "processed"
	StatusSkipped   ResultStatus = "skipped"
	StatusDeferred  ResultStatus = "deferred"
	StatusFailed    ResultStatus = "failed"
)

// Skip and failure reasons.
const (
	ReasonUnhandledEvent         = "unhandled_event_type"
	ReasonIntegrationNotFound    = "integration_not_found"
	ReasonIntegrationDisconnect  = "integration_disconnected"
	ReasonMissingEntityID        = "missing_entity_id"
	ReasonAlreadyDisconnected    = "already_disconnected"
	ReasonCandidatePending       = "candidate_pending"
	ReasonUpstreamNotFound       = "upstream_not_found"
	ReasonUpstreamFailed         = "upstream_failed"
	ReasonPersistenceFailed      = "persistence_failed"
	ReasonMissingCandidateRef    = "missing_candidate_reference"
	ReasonIntegrationLookupError = "integration_lookup_failed"
)

// Result reports how one event was handled. Failures are reported here and
// logged; they are never returned as errors to the caller.
type Result struct {
	EventType     domain.EventType `json:"event_type"`
	Status        ResultStatus     `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	RemoteID      string           `json:"remote_id,omitempty"`
	IntegrationID string           `json:"integration_id,omitempty"`
}

// IntegrationMissing reports whether the event could not be routed to an
// integration.
func (r Result) IntegrationMissing() bool {
	return r.Status == StatusSkipped && r.Reason == ReasonIntegrationNotFound
}

// Orchestrator runs the sync pipeline. It is safe for concurrent use.
type Orchestrator struct {
	store      Store
	clients    ClientFactory
	engine     *compliance.Engine
	audit      *audit.Logger
	deferrer   Deferrer
	pool       *worker.Pool
	dispatcher *domain.EventDispatcher[Result]
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator with the default event table.
func NewOrchestrator(store Store, clients ClientFactory, engine *compliance.Engine, auditLogger *audit.Logger) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		clients: clients,
		engine:  engine,
		audit:   auditLogger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	o.dispatcher = domain.NewEventDispatcher(o.handleUnknown)
	o.dispatcher.Register(o.withIntegration(o.handleCandidate), domain.EventCandidateCreated, domain.EventCandidateUpdated)
	o.dispatcher.Register(o.withIntegration(o.handleApplication), domain.EventApplicationCreated, domain.EventApplicationUpdated)
	o.dispatcher.Register(o.withIntegration(o.handleSyncCompleted), domain.EventSyncCompleted)
	o.dispatcher.Register(o.withIntegration(o.handleAccountDeleted), domain.EventLinkedAccountDeleted)
	return o
}

// WithDeferrer sets the deferred re-sync scheduler (optional dependency).
func (o *Orchestrator) WithDeferrer(d Deferrer) *Orchestrator {
	o.deferrer = d
	return o
}

// WithPool sets the worker pool used by Backfill. Without one, Backfill
// creates a pool per run.
func (o *Orchestrator) WithPool(p *worker.Pool) *Orchestrator {
	o.pool = p
	return o
}

// Handles reports whether t has a registered handler.
func (o *Orchestrator) Handles(t domain.EventType) bool {
	return o.dispatcher.Handles(t)
}

// HandleEvent processes one webhook event.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev *domain.WebhookEvent) Result {
	res := o.dispatcher.Dispatch(ctx, ev)
	res.EventType = ev.Type
	if res.RemoteID == "" {
		res.RemoteID = ev.EntityID
	}
	return res
}

// ResolveIntegration finds the integration an event belongs to: by
// (end-user origin id, integration slug) first, then by linked account id.
func (o *Orchestrator) ResolveIntegration(ctx context.Context, ev *domain.WebhookEvent) (*domain.Integration, error) {
	orgID := ev.OrganizationID()
	slug := ev.LinkedAccount.IntegrationSlug
	if orgID != "" && slug != "" {
		integ, err := o.store.GetIntegrationByOrganization(ctx, orgID, slug)
		if err == nil {
			return integ, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("get integration by organization: %w", err)
		}
	}
	if ev.LinkedAccount.ID == "" {
		return nil, apperrors.ErrIntegrationNotFoundf(orgID)
	}
	integ, err := o.store.GetIntegrationByLinkedAccount(ctx, ev.LinkedAccount.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.ErrIntegrationNotFoundf(ev.LinkedAccount.ID)
		}
		return nil, fmt.Errorf("get integration by linked account: %w", err)
	}
	if orgID != "" && integ.OrganizationID != orgID {
		return nil, apperrors.ErrIntegrationNotFoundf(ev.LinkedAccount.ID)
	}
	return integ, nil
}

type integrationHandler func(ctx context.Context, integ *domain.Integration, ev *domain.WebhookEvent) Result

// withIntegration resolves the event's integration before running h.
func (o *Orchestrator) withIntegration(h integrationHandler) domain.EventHandler[Result] {
	return func(ctx context.Context, ev *domain.WebhookEvent) Result {
		integ, err := o.ResolveIntegration(ctx, ev)
		if err != nil {
			fields := []zap.Field{
				zap.String("event_type", string(ev.Type)),
				zap.String("org_id", ev.OrganizationID()),
				zap.String("linked_account_id", ev.LinkedAccount.ID),
				zap.Error(err),
			}
			if apperrors.IsNotFound(err) {
				logger.Warn("Webhook event skipped: no matching integration", fields...)
				return Result{Status: StatusSkipped, Reason: ReasonIntegrationNotFound}
			}
			logger.Error("Webhook event failed: integration lookup", fields...)
			return Result{Status: StatusFailed, Reason: ReasonIntegrationLookupError}
		}
		res := h(ctx, integ, ev)
		res.IntegrationID = integ.ID
		return res
	}
}

func (o *Orchestrator) handleUnknown(_ context.Context, ev *domain.WebhookEvent) Result {
	logger.Info("Ignoring unhandled webhook event",
		zap.String("event_type", string(ev.Type)),
		zap.String("raw_event", ev.RawEvent),
	)
	return Result{Status: StatusSkipped, Reason: ReasonUnhandledEvent}
}

func (o *Orchestrator) handleCandidate(ctx context.Context, integ *domain.Integration, ev *domain.WebhookEvent) Result {
	if res, ok := o.precheck(integ, ev); !ok {
		return res
	}
	_, err := o.SyncCandidate(ctx, integ, ev.EntityID, domain.AuditSourceMergeWebhook)
	return resultFor(err)
}

func (o *Orchestrator) handleApplication(ctx context.Context, integ *domain.Integration, ev *domain.WebhookEvent) Result {
	if res, ok := o.precheck(integ, ev); !ok {
		return res
	}
	_, err := o.SyncApplication(ctx, integ, ev.EntityID, domain.AuditSourceMergeWebhook)
	return resultFor(err)
}

// precheck rejects entity events that cannot be synced.
func (o *Orchestrator) precheck(integ *domain.Integration, ev *domain.WebhookEvent) (Result, bool) {
	if !integ.Connected() {
		logger.Warn("Webhook event skipped: integration disconnected",
			zap.String("event_type", string(ev.Type)),
			zap.String("integration_id", integ.ID),
		)
		return Result{Status: StatusSkipped, Reason: ReasonIntegrationDisconnect}, false
	}
	if ev.EntityID == "" {
		logger.Warn("Webhook event skipped: no entity id",
			zap.String("event_type", string(ev.Type)),
			zap.String("integration_id", integ.ID),
		)
		return Result{Status: StatusSkipped, Reason: ReasonMissingEntityID}, false
	}
	return Result{}, true
}

// resultFor classifies a sync error into an event Result.
func resultFor(err error) Result {
	switch {
	case err == nil:
		return Result{Status: StatusProcessed}
	case errors.Is(err, ErrCandidatePending):
		return Result{Status: StatusDeferred, Reason: ReasonCandidatePending}
	case errors.Is(err, errMissingCandidateRef):
		return Result{Status: StatusSkipped, Reason: ReasonMissingCandidateRef}
	case provider.IsNotFound(err):
		return Result{Status: StatusFailed, Reason: ReasonUpstreamNotFound}
	case provider.StatusCode(err) != 0 || provider.IsTransient(err):
		return Result{Status: StatusFailed, Reason: ReasonUpstreamFailed}
	default:
		return Result{Status: StatusFailed, Reason: ReasonPersistenceFailed}
	}
}

// profile loads the organization's compliance profile. A missing profile
// is an empty one.
func (o *Orchestrator) profile(ctx context.Context, orgID string) domain.ComplianceProfile {
	p, err := o.store.GetComplianceProfile(ctx, orgID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			logger.Warn("Compliance profile unavailable; evaluating without it",
				zap.String("org_id", orgID),
				zap.Error(err),
			)
		}
		return domain.ComplianceProfile{OrganizationID: orgID}
	}
	return *p
}

// record writes events and logs failures. The records they describe are
// already persisted, so a failed audit write does not fail the sync.
func (o *Orchestrator) record(ctx context.Context, events ...domain.AuditEvent) {
	if err := o.audit.RecordAll(ctx, events); err != nil {
		logger.Warn("Audit write incomplete", zap.Int("events", len(events)), zap.Error(err))
	}
}

func (o *Orchestrator) meta(ctx context.Context, source string) audit.Meta {
	return audit.MetaFromContext(ctx, source, o.now())
}

// upstreamFields logs the status and body of an upstream failure.
func upstreamFields(err error) []zap.Field {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return []zap.Field{zap.Int("status", apiErr.StatusCode), zap.String("body", apiErr.Body), zap.Error(err)}
	}
	return []zap.Field{zap.Error(err)}
}

var _ Store = (*repository.MemoryStore)(nil)
var _ Store = (*repository.PostgresStore)(nil)
