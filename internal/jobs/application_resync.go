// Package jobs defines River Queue job types for async processing.
//
// Jobs carry only identifiers; the worker refetches everything from the
// ATS so a job never acts on a stale payload.
//
// Import Path: hireguard.io/atssync/internal/jobs
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/usecase"
)

// DefaultApplicationRetryDelay is used when no re-sync delay is configured.
const DefaultApplicationRetryDelay = 30 * time.Second

// ---------------------------------------------------------------------------
// Job Args
// ---------------------------------------------------------------------------

// ApplicationResyncArgs re-syncs an application that was deferred because
// its candidate was not stored yet.
type ApplicationResyncArgs struct {
	IntegrationID       string `json:"integration_id"`
	ApplicationRemoteID string `json:"application_remote_id"`
}

// Kind returns the job kind identifier for application re-sync.
func (ApplicationResyncArgs) Kind() string { return "application_resync" }

// InsertOpts collapses repeated deferrals of one application within a
// minute into a single job.
func (ApplicationResyncArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: time.Minute,
		},
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

// ApplicationSyncer is implemented by *usecase.Orchestrator.
type ApplicationSyncer interface {
	ResyncApplication(ctx context.Context, integrationID, remoteID string) (*domain.SyncedApplication, error)
}

// ApplicationResyncWorker runs deferred application re-syncs. It retries
// while the candidate is still missing or the ATS fails transiently and
// cancels the job for conditions a retry cannot fix.
type ApplicationResyncWorker struct {
	river.WorkerDefaults[ApplicationResyncArgs]
	syncer     ApplicationSyncer
	retryDelay time.Duration
}

// NewApplicationResyncWorker creates the worker. Non-positive retryDelay
// falls back to DefaultApplicationRetryDelay.
func NewApplicationResyncWorker(syncer ApplicationSyncer, retryDelay time.Duration) *ApplicationResyncWorker {
	if retryDelay <= 0 {
		retryDelay = DefaultApplicationRetryDelay
	}
	return &ApplicationResyncWorker{syncer: syncer, retryDelay: retryDelay}
}

// Work re-syncs one application.
func (w *ApplicationResyncWorker) Work(ctx context.Context, job *river.Job[ApplicationResyncArgs]) error {
	args := job.Args
	_, err := w.syncer.ResyncApplication(ctx, args.IntegrationID, args.ApplicationRemoteID)
	if err == nil {
		logger.Info("Deferred application synced",
			zap.String("integration_id", args.IntegrationID),
			zap.String("remote_id", args.ApplicationRemoteID),
			zap.Int("attempt", job.Attempt),
		)
		return nil
	}

	if !retryable(err) {
		logger.Warn("Deferred application re-sync cancelled",
			zap.String("integration_id", args.IntegrationID),
			zap.String("remote_id", args.ApplicationRemoteID),
			zap.Error(err),
		)
		return river.JobCancel(fmt.Errorf("resync application %s: %w", args.ApplicationRemoteID, err))
	}
	logger.Info("Deferred application re-sync will retry",
		zap.String("integration_id", args.IntegrationID),
		zap.String("remote_id", args.ApplicationRemoteID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
	return fmt.Errorf("resync application %s: %w", args.ApplicationRemoteID, err)
}

// NextRetry backs off linearly from the configured delay.
func (w *ApplicationResyncWorker) NextRetry(job *river.Job[ApplicationResyncArgs]) time.Time {
	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}
	return time.Now().Add(time.Duration(attempt) * w.retryDelay)
}

// retryable reports whether a later attempt can succeed.
func retryable(err error) bool {
	switch {
	case errors.Is(err, usecase.ErrCandidatePending):
		return true
	case provider.IsTransient(err):
		return true
	case provider.IsNotFound(err), apperrors.IsNotFound(err):
		return false
	}
	if appErr, ok := apperrors.IsAppError(err); ok && appErr.Code == apperrors.CodeIntegrationInactive {
		return false
	}
	// Unknown failures, including database errors, get River's retries.
	return true
}

// ---------------------------------------------------------------------------
// Deferrer
// ---------------------------------------------------------------------------

// RiverDeferrer implements usecase.Deferrer by scheduling
// ApplicationResyncArgs jobs.
type RiverDeferrer struct {
	client *river.Client[pgx.Tx]
	delay  time.Duration
}

// NewRiverDeferrer creates a deferrer. Non-positive delay falls back to
// DefaultApplicationRetryDelay.
func NewRiverDeferrer(client *river.Client[pgx.Tx], delay time.Duration) *RiverDeferrer {
	if delay <= 0 {
		delay = DefaultApplicationRetryDelay
	}
	return &RiverDeferrer{client: client, delay: delay}
}

// EnqueueApplicationResync schedules a re-sync after the configured delay.
func (d *RiverDeferrer) EnqueueApplicationResync(ctx context.Context, integrationID, applicationRemoteID string) error {
	res, err := d.client.Insert(ctx, ApplicationResyncArgs{
		IntegrationID:       integrationID,
		ApplicationRemoteID: applicationRemoteID,
	}, &river.InsertOpts{ScheduledAt: time.Now().Add(d.delay)})
	if err != nil {
		return fmt.Errorf("insert application resync job: %w", err)
	}
	logger.Debug("Application re-sync scheduled",
		zap.String("integration_id", integrationID),
		zap.String("remote_id", applicationRemoteID),
		zap.Int64("job_id", res.Job.ID),
		zap.Bool("duplicate", res.UniqueSkippedAsDuplicate),
	)
	return nil
}

var _ usecase.Deferrer = (*RiverDeferrer)(nil)
