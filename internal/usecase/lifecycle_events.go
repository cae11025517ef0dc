package usecase

import (
	"context"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/pkg/logger"
)

// handleSyncCompleted stamps the integration's last sync time and records
// sync_completed.
func (o *Orchestrator) handleSyncCompleted(ctx context.Context, integ *domain.Integration, _ *domain.WebhookEvent) Result {
	if !integ.Connected() {
		return Result{Status: StatusSkipped, Reason: ReasonIntegrationDisconnect}
	}
	if err := o.completeSync(ctx, integ, nil, domain.AuditSourceMergeWebhook); err != nil {
		return Result{Status: StatusFailed, Reason: ReasonPersistenceFailed}
	}
	return Result{Status: StatusProcessed}
}

func (o *Orchestrator) completeSync(ctx context.Context, integ *domain.Integration, counts map[string]int, source string) error {
	at := o.now()
	if err := o.store.MarkIntegrationSynced(ctx, integ.ID, at); err != nil {
		logger.Error("Mark integration synced failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("integration_id", integ.ID),
			zap.Error(err),
		)
		return err
	}
	integ.LastSyncedAt = &at
	o.record(ctx, audit.SyncCompleted(integ, counts, o.meta(ctx, source)))
	logger.Info("Integration sync completed",
		zap.String("org_id", integ.OrganizationID),
		zap.String("integration_id", integ.ID),
	)
	return nil
}

// handleAccountDeleted disconnects the integration and records a warning.
// Synced candidates and applications are kept.
func (o *Orchestrator) handleAccountDeleted(ctx context.Context, integ *domain.Integration, _ *domain.WebhookEvent) Result {
	if !integ.Connected() {
		return Result{Status: StatusSkipped, Reason: ReasonAlreadyDisconnected}
	}
	if err := o.Disconnect(ctx, integ, domain.AuditSourceMergeWebhook); err != nil {
		return Result{Status: StatusFailed, Reason: ReasonPersistenceFailed}
	}
	return Result{Status: StatusProcessed}
}

// Disconnect marks integ disconnected and records linked_account_deleted.
func (o *Orchestrator) Disconnect(ctx context.Context, integ *domain.Integration, source string) error {
	if err := o.store.SetIntegrationStatus(ctx, integ.ID, domain.IntegrationDisconnected); err != nil {
		logger.Error("Disconnect integration failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("integration_id", integ.ID),
			zap.Error(err),
		)
		return err
	}
	integ.Status = domain.IntegrationDisconnected
	o.record(ctx, audit.LinkedAccountDeleted(integ, o.meta(ctx, source)))
	logger.Warn("Integration disconnected",
		zap.String("org_id", integ.OrganizationID),
		zap.String("integration_id", integ.ID),
		zap.String("linked_account_id", integ.LinkedAccountID),
	)
	return nil
}
