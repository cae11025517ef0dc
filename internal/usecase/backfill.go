package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/pkg/worker"
	"hireguard.io/atssync/internal/provider"
)

// BackfillReport counts what one backfill run did.
type BackfillReport struct {
	IntegrationID string `json:"integration_id"`
	Candidates    int    `json:"candidates"`
	Applications  int    `json:"applications"`
	Deferred      int    `json:"deferred"`
	Failed        int    `json:"failed"`
}

// BackfillOptions tunes a backfill run.
type BackfillOptions struct {
	// Since limits the walk to records modified after it.
	Since *time.Time
	// PoolSize bounds concurrency when the Orchestrator has no pool.
	PoolSize int
}

type backfillCounters struct {
	candidates, applications, deferred, failed atomic.Int64
}

// Backfill walks every candidate and then every application of an
// integration, syncing each through a bounded worker pool. Per-entity
// failures are counted and logged, never returned. It finishes with
// sync_completed.
func (o *Orchestrator) Backfill(ctx context.Context, integrationID string, opts BackfillOptions) (*BackfillReport, error) {
	integ, err := o.store.GetIntegration(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("get integration %s: %w", integrationID, err)
	}
	if !integ.Connected() {
		return nil, apperrors.BadRequest(apperrors.CodeIntegrationInactive, "integration is disconnected").
			WithParams(map[string]interface{}{"integration_id": integrationID})
	}

	pool := o.pool
	if pool == nil {
		pool, err = worker.NewPool("backfill", opts.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("create backfill pool: %w", err)
		}
		defer pool.Release(30 * time.Second)
	}

	client := o.clients(integ.AccountToken)
	params := provider.ListParams{ModifiedAfter: opts.Since}
	var n backfillCounters

	logger.Info("Backfill started",
		zap.String("org_id", integ.OrganizationID),
		zap.String("integration_id", integ.ID),
		zap.Timep("since", opts.Since),
	)

	// Candidates first so applications find their candidate on the first pass.
	candidates := pool.NewGroup()
	err = client.IterateCandidates(ctx, params, func(raw provider.Candidate) bool {
		return candidates.Go(ctx, func(ctx context.Context) {
			if _, err := o.persistCandidate(ctx, integ, client, raw, domain.AuditSourceBackfill, true); err != nil {
				n.failed.Add(1)
				return
			}
			n.candidates.Add(1)
		}) == nil
	})
	candidates.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return n.report(integ.ID), fmt.Errorf("walk candidates: %w", err)
	}

	applications := pool.NewGroup()
	err = client.IterateApplications(ctx, params, func(raw provider.Application) bool {
		return applications.Go(ctx, func(ctx context.Context) {
			_, err := o.persistApplication(ctx, integ, client, raw, domain.AuditSourceBackfill)
			switch {
			case err == nil:
				n.applications.Add(1)
			case errors.Is(err, ErrCandidatePending):
				n.deferred.Add(1)
			default:
				n.failed.Add(1)
			}
		}) == nil
	})
	applications.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return n.report(integ.ID), fmt.Errorf("walk applications: %w", err)
	}

	report := n.report(integ.ID)
	counts := map[string]int{
		"candidates":   report.Candidates,
		"applications": report.Applications,
		"deferred":     report.Deferred,
		"failed":       report.Failed,
	}
	if err := o.completeSync(ctx, integ, counts, domain.AuditSourceBackfill); err != nil {
		return report, fmt.Errorf("complete backfill: %w", err)
	}

	logger.Info("Backfill finished",
		zap.String("org_id", integ.OrganizationID),
		zap.String("integration_id", integ.ID),
		zap.Int("candidates", report.Candidates),
		zap.Int("applications", report.Applications),
		zap.Int("deferred", report.Deferred),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (c *backfillCounters) report(integrationID string) *BackfillReport {
	return &BackfillReport{
		IntegrationID: integrationID,
		Candidates:    int(c.candidates.Load()),
		Applications:  int(c.applications.Load()),
		Deferred:      int(c.deferred.Load()),
		Failed:        int(c.failed.Load()),
	}
}
