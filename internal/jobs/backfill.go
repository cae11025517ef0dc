package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/usecase"
)

// DefaultBackfillTimeout bounds one backfill job.
const DefaultBackfillTimeout = time.Hour

// BackfillArgs runs a full (or since-bounded) backfill of one integration.
type BackfillArgs struct {
	IntegrationID string     `json:"integration_id"`
	Since         *time.Time `json:"since,omitempty"`
}

// Kind returns the job kind identifier for integration backfill.
func (BackfillArgs) Kind() string { return "integration_backfill" }

// InsertOpts allows one queued or running backfill per integration and
// window at a time.
func (BackfillArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 10 * time.Minute,
		},
	}
}

// Backfiller is implemented by *usecase.Orchestrator.
type Backfiller interface {
	Backfill(ctx context.Context, integrationID string, opts usecase.BackfillOptions) (*usecase.BackfillReport, error)
}

// BackfillWorker executes BackfillArgs jobs.
type BackfillWorker struct {
	river.WorkerDefaults[BackfillArgs]
	backfiller Backfiller
	poolSize   int
	timeout    time.Duration
}

// NewBackfillWorker creates the worker. Non-positive timeout falls back to
// DefaultBackfillTimeout.
func NewBackfillWorker(backfiller Backfiller, poolSize int, timeout time.Duration) *BackfillWorker {
	if timeout <= 0 {
		timeout = DefaultBackfillTimeout
	}
	return &BackfillWorker{backfiller: backfiller, poolSize: poolSize, timeout: timeout}
}

// Timeout overrides River's one-minute default.
func (w *BackfillWorker) Timeout(*river.Job[BackfillArgs]) time.Duration {
	return w.timeout
}

// Work runs the backfill. A missing or disconnected integration cancels the
// job; anything else is left to River's retries.
func (w *BackfillWorker) Work(ctx context.Context, job *river.Job[BackfillArgs]) error {
	args := job.Args
	report, err := w.backfiller.Backfill(ctx, args.IntegrationID, usecase.BackfillOptions{
		Since:    args.Since,
		PoolSize: w.poolSize,
	})
	if err != nil {
		appErr, isApp := apperrors.IsAppError(err)
		if apperrors.IsNotFound(err) || (isApp && appErr.Code == apperrors.CodeIntegrationInactive) {
			logger.Warn("Backfill job cancelled",
				zap.String("integration_id", args.IntegrationID),
				zap.Error(err),
			)
			return river.JobCancel(fmt.Errorf("backfill %s: %w", args.IntegrationID, err))
		}
		return fmt.Errorf("backfill %s: %w", args.IntegrationID, err)
	}

	logger.Info("Backfill job finished",
		zap.String("integration_id", args.IntegrationID),
		zap.Int64("job_id", job.ID),
		zap.Int("candidates", report.Candidates),
		zap.Int("applications", report.Applications),
		zap.Int("failed", report.Failed),
	)
	return nil
}

// RiverBackfillQueue enqueues BackfillArgs jobs for the HTTP API.
type RiverBackfillQueue struct {
	client *river.Client[pgx.Tx]
}

// NewRiverBackfillQueue creates a queue backed by client.
func NewRiverBackfillQueue(client *river.Client[pgx.Tx]) *RiverBackfillQueue {
	return &RiverBackfillQueue{client: client}
}

// EnqueueBackfill inserts a backfill job. duplicate is true when an
// identical job was already pending.
func (q *RiverBackfillQueue) EnqueueBackfill(ctx context.Context, integrationID string, since *time.Time) (jobID int64, duplicate bool, err error) {
	res, err := q.client.Insert(ctx, BackfillArgs{IntegrationID: integrationID, Since: since}, nil)
	if err != nil {
		return 0, false, fmt.Errorf("insert backfill job: %w", err)
	}
	return res.Job.ID, res.UniqueSkippedAsDuplicate, nil
}
