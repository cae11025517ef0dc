package modules

import (
	"context"

	"github.com/riverqueue/river"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/jobs"
	"hireguard.io/atssync/internal/usecase"
)

// SyncModule owns the sync orchestrator and its background jobs.
type SyncModule struct {
	infra        *Infrastructure
	orchestrator *usecase.Orchestrator
}

func NewSyncModule(infra *Infrastructure) *SyncModule {
	base := infra.Provider
	orch := usecase.NewOrchestrator(
		infra.Store,
		func(accountToken string) usecase.ResourceClient { return base.ForAccount(accountToken) },
		infra.Engine,
		infra.AuditLogger,
	).WithPool(infra.Pool)
	return &SyncModule{infra: infra, orchestrator: orch}
}

func (m *SyncModule) Name() string { return "sync" }

// Orchestrator exposes the pipeline for callers outside the HTTP server.
func (m *SyncModule) Orchestrator() *usecase.Orchestrator { return m.orchestrator }

func (m *SyncModule) RegisterWorkers(workers *river.Workers) {
	river.AddWorker(workers, jobs.NewApplicationResyncWorker(m.orchestrator, m.infra.Config.River.ApplicationRetryDelay))
	river.AddWorker(workers, jobs.NewBackfillWorker(m.orchestrator, m.infra.Config.Worker.BackfillPoolSize, 0))
}

// ContributeServerDeps attaches the River-backed deferrer and backfill
// queue when River is running; otherwise deferred applications wait for
// their candidate's next sync and backfills run inline.
func (m *SyncModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Pipeline = m.orchestrator
	if client := m.infra.RiverClient; client != nil {
		m.orchestrator.WithDeferrer(jobs.NewRiverDeferrer(client, m.infra.Config.River.ApplicationRetryDelay))
		deps.Backfills = jobs.NewRiverBackfillQueue(client)
	}
}

func (m *SyncModule) Shutdown(context.Context) error { return nil }
