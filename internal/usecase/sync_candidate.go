package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/mapper"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/provider"
)

// SyncCandidate fetches one candidate, maps and flags it, upserts it and
// records candidate_synced plus one compliance_alert per flag. Applications
// that were deferred waiting on this candidate are synced afterwards.
func (o *Orchestrator) SyncCandidate(ctx context.Context, integ *domain.Integration, remoteID, source string) (*domain.SyncedCandidate, error) {
	return o.syncCandidate(ctx, integ, o.clients(integ.AccountToken), remoteID, source, true)
}

func (o *Orchestrator) syncCandidate(ctx context.Context, integ *domain.Integration, client ResourceClient, remoteID, source string, drain bool) (*domain.SyncedCandidate, error) {
	raw, err := client.GetCandidate(ctx, remoteID, provider.GetParams{})
	if err != nil {
		logger.Warn("Candidate fetch failed",
			append(upstreamFields(err),
				zap.String("org_id", integ.OrganizationID),
				zap.String("integration_id", integ.ID),
				zap.String("remote_id", remoteID),
			)...,
		)
		return nil, fmt.Errorf("fetch candidate %s: %w", remoteID, err)
	}
	return o.persistCandidate(ctx, integ, client, *raw, source, drain)
}

// persistCandidate runs map, flag, upsert and audit for an already fetched
// candidate.
func (o *Orchestrator) persistCandidate(ctx context.Context, integ *domain.Integration, client ResourceClient, raw provider.Candidate, source string, drain bool) (*domain.SyncedCandidate, error) {
	c := mapper.MapCandidate(raw, integ.OrganizationID, integ.ID)
	c.LastSyncedAt = o.now()
	c.Flags = o.engine.GenerateCandidateFlags(c, o.profile(ctx, integ.OrganizationID))

	if err := o.store.UpsertCandidate(ctx, &c); err != nil {
		logger.Error("Candidate upsert failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("integration_id", integ.ID),
			zap.String("remote_id", c.RemoteID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("upsert candidate %s: %w", c.RemoteID, err)
	}

	m := o.meta(ctx, source)
	o.record(ctx, append([]domain.AuditEvent{audit.CandidateSynced(&c, m)}, audit.CandidateAlerts(&c, m)...)...)

	logger.Info("Candidate synced",
		zap.String("org_id", c.OrganizationID),
		zap.String("integration_id", c.IntegrationID),
		zap.String("remote_id", c.RemoteID),
		zap.Int("flags", len(c.Flags)),
	)

	if drain {
		o.drainDeferred(ctx, integ, client, c.RemoteID, source)
	}
	return &c, nil
}

// drainDeferred syncs applications that were waiting on candidateRemoteID.
// Failures stay deferred for the next attempt.
func (o *Orchestrator) drainDeferred(ctx context.Context, integ *domain.Integration, client ResourceClient, candidateRemoteID, source string) {
	waiting, err := o.store.ListDeferredApplications(ctx, integ.OrganizationID, candidateRemoteID)
	if err != nil {
		logger.Warn("List deferred applications failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("candidate_remote_id", candidateRemoteID),
			zap.Error(err),
		)
		return
	}
	for _, d := range waiting {
		if ctx.Err() != nil {
			return
		}
		if _, err := o.syncApplication(ctx, integ, client, d.ApplicationRemoteID, source); err != nil {
			logger.Warn("Deferred application still pending",
				zap.String("org_id", integ.OrganizationID),
				zap.String("remote_id", d.ApplicationRemoteID),
				zap.Error(err),
			)
		}
	}
}
