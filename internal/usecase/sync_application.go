package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/mapper"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
)

var errMissingCandidateRef = errors.New("application has no candidate reference")

// applicationExpand asks the ATS to inline stage and rejection names so the
// stage lookup can often be skipped.
var applicationExpand = []string{"current_stage", "reject_reason"}

// SyncApplication fetches one application and persists it once its
// candidate is stored.
//
// When the candidate is missing locally it is synced inline, the
// application is recorded as deferred (and handed to the Deferrer, if any),
// and ErrCandidatePending is returned without persisting the application.
// Job and stage lookups are best-effort: a failure leaves those fields
// unset.
func (o *Orchestrator) SyncApplication(ctx context.Context, integ *domain.Integration, remoteID, source string) (*domain.SyncedApplication, error) {
	return o.syncApplication(ctx, integ, o.clients(integ.AccountToken), remoteID, source)
}

// ResyncApplication is SyncApplication for callers holding only the
// integration id, such as the deferred re-sync job.
func (o *Orchestrator) ResyncApplication(ctx context.Context, integrationID, remoteID string) (*domain.SyncedApplication, error) {
	integ, err := o.store.GetIntegration(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get integration %s: %w", integrationID, err)
	}
	if !integ.Connected() {
		return nil, apperrors.New(apperrors.CodeIntegrationInactive, "integration is disconnected", http.StatusConflict).
			WithParams(map[string]interface{}{"integration_id": integrationID})
	}
	return o.SyncApplication(ctx, integ, remoteID, domain.AuditSourceResync)
}

func (o *Orchestrator) syncApplication(ctx context.Context, integ *domain.Integration, client ResourceClient, remoteID, source string) (*domain.SyncedApplication, error) {
	raw, err := client.GetApplication(ctx, remoteID, provider.GetParams{Expand: applicationExpand})
	if err != nil {
		logger.Warn("Application fetch failed",
			append(upstreamFields(err),
				zap.String("org_id", integ.OrganizationID),
				zap.String("integration_id", integ.ID),
				zap.String("remote_id", remoteID),
			)...,
		)
		return nil, fmt.Errorf("fetch application %s: %w", remoteID, err)
	}
	return o.persistApplication(ctx, integ, client, *raw, source)
}

func (o *Orchestrator) persistApplication(ctx context.Context, integ *domain.Integration, client ResourceClient, raw provider.Application, source string) (*domain.SyncedApplication, error) {
	candidateRemoteID := raw.CandidateID()
	if candidateRemoteID == "" {
		logger.Warn("Application skipped: no candidate reference",
			zap.String("org_id", integ.OrganizationID),
			zap.String("remote_id", raw.ID),
		)
		return nil, fmt.Errorf("application %s: %w", raw.ID, errMissingCandidateRef)
	}

	cand, err := o.store.GetCandidateByRemoteID(ctx, integ.OrganizationID, candidateRemoteID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, o.deferApplication(ctx, integ, client, raw.ID, candidateRemoteID, source)
		}
		return nil, fmt.Errorf("get candidate %s: %w", candidateRemoteID, err)
	}

	job := o.resolveJob(ctx, integ, client, raw)
	stage := o.resolveStage(ctx, integ, client, raw)

	a := mapper.MapApplication(raw, integ.OrganizationID, integ.ID, cand.ID, job, stage)
	a.LastSyncedAt = o.now()
	a.Flags = append(a.Flags, o.engine.GenerateApplicationFlags(a, *cand, o.profile(ctx, integ.OrganizationID))...)

	if err := o.store.UpsertApplication(ctx, &a); err != nil {
		if errors.Is(err, repository.ErrCandidateReference) {
			// Candidate row vanished between lookup and write.
			return nil, o.deferApplication(ctx, integ, client, raw.ID, candidateRemoteID, source)
		}
		logger.Error("Application upsert failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("integration_id", integ.ID),
			zap.String("remote_id", a.RemoteID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("upsert application %s: %w", a.RemoteID, err)
	}

	if err := o.store.DeleteDeferredApplication(ctx, integ.OrganizationID, a.RemoteID); err != nil {
		logger.Warn("Clear deferred application failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("remote_id", a.RemoteID),
			zap.Error(err),
		)
	}

	m := o.meta(ctx, source)
	o.record(ctx, append([]domain.AuditEvent{audit.ApplicationSynced(&a, m)}, audit.ApplicationAlerts(&a, m)...)...)

	logger.Info("Application synced",
		zap.String("org_id", a.OrganizationID),
		zap.String("integration_id", a.IntegrationID),
		zap.String("remote_id", a.RemoteID),
		zap.Bool("job_resolved", a.JobName != nil),
		zap.Bool("stage_resolved", a.CurrentStageName != nil),
		zap.Int("flags", len(a.Flags)),
	)
	return &a, nil
}

// deferApplication syncs the missing candidate inline and parks the
// application. Deferred applications are not drained here, so the
// application is never persisted in the invocation that found it orphaned.
func (o *Orchestrator) deferApplication(ctx context.Context, integ *domain.Integration, client ResourceClient, applicationRemoteID, candidateRemoteID, source string) error {
	logger.Info("Application references unsynced candidate; syncing candidate first",
		zap.String("org_id", integ.OrganizationID),
		zap.String("remote_id", applicationRemoteID),
		zap.String("candidate_remote_id", candidateRemoteID),
	)

	candidateID := ""
	if cand, err := o.syncCandidate(ctx, integ, client, candidateRemoteID, source, false); err == nil {
		candidateID = cand.ID
	}

	d := domain.DeferredApplication{
		OrganizationID:      integ.OrganizationID,
		IntegrationID:       integ.ID,
		ApplicationRemoteID: applicationRemoteID,
		CandidateRemoteID:   candidateRemoteID,
		DeferredAt:          o.now(),
	}
	if err := o.store.RecordDeferredApplication(ctx, &d); err != nil {
		logger.Warn("Record deferred application failed",
			zap.String("org_id", integ.OrganizationID),
			zap.String("remote_id", applicationRemoteID),
			zap.Error(err),
		)
	}
	o.record(ctx, audit.ApplicationDeferred(&d, candidateID, o.meta(ctx, source)))

	if o.deferrer != nil {
		if err := o.deferrer.EnqueueApplicationResync(ctx, integ.ID, applicationRemoteID); err != nil {
			logger.Warn("Enqueue application re-sync failed",
				zap.String("integration_id", integ.ID),
				zap.String("remote_id", applicationRemoteID),
				zap.Error(err),
			)
		}
	}
	return fmt.Errorf("application %s: %w", applicationRemoteID, ErrCandidatePending)
}

func (o *Orchestrator) resolveJob(ctx context.Context, integ *domain.Integration, client ResourceClient, raw provider.Application) *mapper.JobInfo {
	if raw.Job == nil || raw.Job.ID == "" {
		return nil
	}
	job, err := client.GetJob(ctx, raw.Job.ID, provider.GetParams{Expand: []string{"offices"}})
	if err != nil {
		logger.Warn("Job lookup failed; job fields left unset",
			append(upstreamFields(err),
				zap.String("org_id", integ.OrganizationID),
				zap.String("remote_id", raw.ID),
				zap.String("job_remote_id", raw.Job.ID),
			)...,
		)
		return nil
	}
	return mapper.JobInfoFromJob(job)
}

// resolveStage prefers an expanded current_stage name and only fetches the
// stage when the reference carries an id alone.
func (o *Orchestrator) resolveStage(ctx context.Context, integ *domain.Integration, client ResourceClient, raw provider.Application) *mapper.StageInfo {
	if info := mapper.StageInfoFromRef(raw.CurrentStage); info != nil {
		return info
	}
	if raw.CurrentStage == nil || raw.CurrentStage.ID == "" {
		return nil
	}
	stage, err := client.GetInterviewStage(ctx, raw.CurrentStage.ID, provider.GetParams{})
	if err != nil {
		logger.Warn("Stage lookup failed; stage fields left unset",
			append(upstreamFields(err),
				zap.String("org_id", integ.OrganizationID),
				zap.String("remote_id", raw.ID),
				zap.String("stage_remote_id", raw.CurrentStage.ID),
			)...,
		)
		return nil
	}
	return mapper.StageInfoFromStage(stage)
}
