package usecase

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireguard.io/atssync/internal/compliance"
	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/mapper"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
)

func str(s string) *string { return &s }

type fakeDeferrer struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDeferrer) EnqueueApplicationResync(_ context.Context, integrationID, applicationRemoteID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, integrationID+"/"+applicationRemoteID)
	return nil
}

type fixture struct {
	store    *repository.MemoryStore
	client   *provider.MockClient
	deferrer *fakeDeferrer
	orch     *Orchestrator
	integ    *domain.Integration
	tokens   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := compliance.DefaultCatalog()
	require.NoError(t, err)

	f := &fixture{
		store:    repository.NewMemoryStore(),
		client:   provider.NewMockClient(),
		deferrer: &fakeDeferrer{},
	}
	f.orch = NewOrchestrator(f.store, func(token string) ResourceClient {
		f.tokens = append(f.tokens, token)
		return f.client
	}, compliance.NewEngine(catalog), audit.NewLogger(f.store)).WithDeferrer(f.deferrer)
	f.orch.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	f.integ = &domain.Integration{
		OrganizationID:  "org-1",
		ProviderSlug:    "greenhouse",
		LinkedAccountID: "la-1",
		AccountToken:    "acct-tok",
	}
	_, err = f.store.CreateIntegration(context.Background(), f.integ)
	require.NoError(t, err)
	return f
}

func (f *fixture) event(t domain.EventType, entityID string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		RawEvent: string(t),
		Type:     t,
		EntityID: entityID,
		LinkedAccount: domain.LinkedAccount{
			ID:              "la-1",
			IntegrationSlug: "greenhouse",
			EndUserOriginID: "org-1",
		},
	}
}

func (f *fixture) auditTypes(t *testing.T) []domain.AuditEventType {
	t.Helper()
	events, err := f.store.ListAuditEvents(context.Background(), "org-1", repository.AuditFilter{})
	require.NoError(t, err)
	require.NoError(t, audit.VerifyChain(events))
	out := make([]domain.AuditEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func chicagoCandidate(id string) provider.Candidate {
	return provider.Candidate{
		ID:             id,
		FirstName:      str("Ada"),
		LastName:       str("Lovelace"),
		Locations:      []string{"Chicago, IL"},
		EmailAddresses: []provider.EmailAddress{{Value: str("ada@example.com"), EmailAddressType: str("PERSONAL")}},
	}
}

func aiApplication(id, candidateID string) provider.Application {
	return provider.Application{
		ID:           id,
		Candidate:    &provider.Ref{ID: candidateID},
		Job:          &provider.Ref{ID: "job-1"},
		CurrentStage: &provider.Ref{ID: "stage-1", Name: "AI Video Screen"},
	}
}

func flagTypes(flags []domain.ComplianceFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Type)
	}
	return out
}

func TestHandleEvent_CandidateRedeliveryConverges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))

	for i := 0; i < 3; i++ {
		res := f.orch.HandleEvent(ctx, f.event(domain.EventCandidateUpdated, "cand-1"))
		require.Equal(t, StatusProcessed, res.Status)
		assert.Equal(t, f.integ.ID, res.IntegrationID)
	}

	updated := chicagoCandidate("cand-1")
	updated.Title = str("Staff Engineer")
	f.client.PutCandidate(updated)
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)

	assert.Equal(t, 1, f.store.CandidateCount())
	got, err := f.store.GetCandidateByRemoteID(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", got.Title)
	assert.Equal(t, []string{compliance.FlagCandidateJurisdiction}, flagTypes(got.Flags))
	assert.Equal(t, []string{"acct-tok"}, f.tokens[:1])

	types := f.auditTypes(t)
	assert.Len(t, types, 8)
	assert.Equal(t, domain.AuditCandidateSynced, types[0])
	assert.Equal(t, domain.AuditComplianceAlert, types[1])
}

func TestHandleEvent_StaleFlagsAreDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noEmail := chicagoCandidate("cand-1")
	noEmail.EmailAddresses = nil
	noEmail.PhoneNumbers = []provider.PhoneNumber{{Value: str("555-0100"), PhoneNumberType: str("MOBILE")}}
	f.client.PutCandidate(noEmail)
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)

	got, err := f.store.GetCandidateByRemoteID(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	assert.Contains(t, flagTypes(got.Flags), compliance.FlagNoNoticeChannel)

	f.client.PutCandidate(chicagoCandidate("cand-1"))
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateUpdated, "cand-1")).Status)

	got, err = f.store.GetCandidateByRemoteID(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	assert.NotContains(t, flagTypes(got.Flags), compliance.FlagNoNoticeChannel)
}

func TestHandleEvent_OutOfOrderApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	f.client.PutApplication(aiApplication("app-1", "cand-1"))
	f.client.PutJob(provider.Job{ID: "job-1", Name: str("Backend Engineer"), Offices: []provider.Ref{{ID: "off-1", Name: "Chicago"}}})

	res := f.orch.HandleEvent(ctx, f.event(domain.EventApplicationCreated, "app-1"))
	assert.Equal(t, StatusDeferred, res.Status)
	assert.Equal(t, ReasonCandidatePending, res.Reason)
	assert.Equal(t, "app-1", res.RemoteID)

	assert.Equal(t, 1, f.store.CandidateCount(), "missing candidate is synced inline")
	assert.Zero(t, f.store.ApplicationCount(), "application is not persisted in the same invocation")
	assert.Equal(t, []string{f.integ.ID + "/app-1"}, f.deferrer.calls)
	assert.Contains(t, f.auditTypes(t), domain.AuditCandidateSynced)
	assert.Contains(t, f.auditTypes(t), domain.AuditApplicationDeferred)

	waiting, err := f.store.ListDeferredApplications(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	require.Len(t, waiting, 1)

	// The next candidate delivery drains the waiting application.
	res = f.orch.HandleEvent(ctx, f.event(domain.EventCandidateUpdated, "cand-1"))
	require.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, 1, f.store.ApplicationCount())

	app, err := f.store.GetApplicationByRemoteID(ctx, "org-1", "app-1")
	require.NoError(t, err)
	cand, err := f.store.GetCandidateByRemoteID(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	assert.Equal(t, cand.ID, app.CandidateID)
	require.NotNil(t, app.JobName)
	assert.Equal(t, "Backend Engineer", *app.JobName)
	assert.Equal(t, []string{"Chicago"}, app.JobOffices)

	waiting, err = f.store.ListDeferredApplications(ctx, "org-1", "cand-1")
	require.NoError(t, err)
	assert.Empty(t, waiting)

	// Redelivering the application is idempotent.
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventApplicationUpdated, "app-1")).Status)
	assert.Equal(t, 1, f.store.ApplicationCount())
}

func TestHandleEvent_ApplicationRedeliveryAfterCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	f.client.PutApplication(aiApplication("app-1", "cand-1"))

	require.Equal(t, StatusDeferred, f.orch.HandleEvent(ctx, f.event(domain.EventApplicationCreated, "app-1")).Status)
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventApplicationUpdated, "app-1")).Status)
	assert.Equal(t, 1, f.store.ApplicationCount())
}

func TestHandleEvent_ApplicationFlagsAndPartialResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	f.client.PutApplication(aiApplication("app-1", "cand-1"))
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)

	// job-1 is not seeded, so the job lookup answers 404.
	res := f.orch.HandleEvent(ctx, f.event(domain.EventApplicationCreated, "app-1"))
	require.Equal(t, StatusProcessed, res.Status)

	app, err := f.store.GetApplicationByRemoteID(ctx, "org-1", "app-1")
	require.NoError(t, err)
	assert.Nil(t, app.JobName)
	assert.Empty(t, app.JobOffices)
	assert.Equal(t, "job-1", app.JobRemoteID)
	require.NotNil(t, app.IsAIStage)
	assert.True(t, *app.IsAIStage)

	types := flagTypes(app.Flags)
	assert.Equal(t, mapper.FlagAIScreeningStage, types[0], "mapper flags come first")
	assert.Contains(t, types, compliance.FlagAIDisclosureMissing)
	assert.Contains(t, types, compliance.FlagAINoticeRequired)
	assert.Contains(t, types, compliance.FlagAIVideoInterviewConsent)

	assert.Equal(t, 1, f.client.CallCount("job:job-1"))
	assert.Zero(t, f.client.CallCount("stage:stage-1"), "expanded stage name spares the fetch")
}

func TestHandleEvent_StageFetchedWhenRefHasNoName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	raw := aiApplication("app-1", "cand-1")
	raw.CurrentStage = &provider.Ref{ID: "stage-9"}
	f.client.PutApplication(raw)
	f.client.PutInterviewStage(provider.InterviewStage{ID: "stage-9", Name: str("Onsite")})
	require.NoError(t, f.store.UpsertComplianceProfile(ctx, &domain.ComplianceProfile{OrganizationID: "org-1", AIDisclosureOnFile: true}))

	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventApplicationUpdated, "app-1")).Status)

	app, err := f.store.GetApplicationByRemoteID(ctx, "org-1", "app-1")
	require.NoError(t, err)
	require.NotNil(t, app.CurrentStageName)
	assert.Equal(t, "Onsite", *app.CurrentStageName)
	assert.False(t, *app.IsAIStage)
	assert.Empty(t, app.Flags)
	assert.Equal(t, 1, f.client.CallCount("stage:stage-9"))
}

func TestHandleEvent_StageLookupFailureLeavesStageUnset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	raw := aiApplication("app-1", "cand-1")
	raw.CurrentStage = &provider.Ref{ID: "stage-9"}
	f.client.PutApplication(raw)
	f.client.Fail("stage", "stage-9", &provider.APIError{StatusCode: http.StatusBadGateway, Body: "upstream"})

	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventApplicationUpdated, "app-1")).Status)

	app, err := f.store.GetApplicationByRemoteID(ctx, "org-1", "app-1")
	require.NoError(t, err)
	assert.Nil(t, app.CurrentStageName)
	assert.Nil(t, app.IsAIStage)
	assert.Equal(t, "stage-9", app.CurrentStageRemoteID)
}

func TestHandleEvent_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{"not found", &provider.APIError{StatusCode: http.StatusNotFound}, ReasonUpstreamNotFound},
		{"server error", &provider.APIError{StatusCode: http.StatusInternalServerError, Body: "boom"}, ReasonUpstreamFailed},
		{"timeout", context.DeadlineExceeded, ReasonUpstreamFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.client.Fail("candidate", "cand-1", tt.err)

			res := f.orch.HandleEvent(context.Background(), f.event(domain.EventCandidateUpdated, "cand-1"))
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, tt.wantReason, res.Reason)
			assert.Zero(t, f.store.CandidateCount())
			assert.Zero(t, f.store.AuditEventCount())
		})
	}
}

func TestHandleEvent_ApplicationWithoutCandidateRef(t *testing.T) {
	f := newFixture(t)
	f.client.PutApplication(provider.Application{ID: "app-1"})

	res := f.orch.HandleEvent(context.Background(), f.event(domain.EventApplicationCreated, "app-1"))
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, ReasonMissingCandidateRef, res.Reason)
	assert.Zero(t, f.store.ApplicationCount())
}

func TestHandleEvent_AccountDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	require.Equal(t, StatusProcessed, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateCreated, "cand-1")).Status)
	before := f.store.AuditEventCount()

	res := f.orch.HandleEvent(ctx, f.event(domain.EventLinkedAccountDeleted, ""))
	require.Equal(t, StatusProcessed, res.Status)

	integ, err := f.store.GetIntegration(ctx, f.integ.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationDisconnected, integ.Status)
	assert.Equal(t, 1, f.store.CandidateCount(), "synced rows are retained")

	events, err := f.store.ListAuditEvents(ctx, "org-1", repository.AuditFilter{EventType: domain.AuditLinkedAccountDeleted})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.SeverityWarning, events[0].Severity)
	assert.Equal(t, before+1, f.store.AuditEventCount())

	// Redelivery and later entity events are skipped.
	assert.Equal(t, ReasonAlreadyDisconnected, f.orch.HandleEvent(ctx, f.event(domain.EventLinkedAccountDeleted, "")).Reason)
	assert.Equal(t, ReasonIntegrationDisconnect, f.orch.HandleEvent(ctx, f.event(domain.EventCandidateUpdated, "cand-1")).Reason)
	assert.Equal(t, before+1, f.store.AuditEventCount())
}

func TestHandleEvent_SyncCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.orch.HandleEvent(ctx, f.event(domain.EventSyncCompleted, ""))
	require.Equal(t, StatusProcessed, res.Status)

	integ, err := f.store.GetIntegration(ctx, f.integ.ID)
	require.NoError(t, err)
	require.NotNil(t, integ.LastSyncedAt)
	assert.True(t, f.orch.now().Equal(*integ.LastSyncedAt))
	assert.Equal(t, []domain.AuditEventType{domain.AuditSyncCompleted}, f.auditTypes(t))
}

func TestHandleEvent_RoutingSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.orch.HandleEvent(ctx, f.event("offer.created", "offer-1"))
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, ReasonUnhandledEvent, res.Reason)
	assert.False(t, res.IntegrationMissing())

	unknown := f.event(domain.EventCandidateCreated, "cand-1")
	unknown.LinkedAccount = domain.LinkedAccount{ID: "la-other", IntegrationSlug: "lever", EndUserOriginID: "org-9"}
	res = f.orch.HandleEvent(ctx, unknown)
	assert.True(t, res.IntegrationMissing())

	missingID := f.event(domain.EventCandidateCreated, "")
	assert.Equal(t, ReasonMissingEntityID, f.orch.HandleEvent(ctx, missingID).Reason)

	assert.Empty(t, f.client.Calls())
	assert.Zero(t, f.store.AuditEventCount())
}

func TestResolveIntegration_FallsBackToLinkedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := f.event(domain.EventSyncCompleted, "")
	ev.LinkedAccount.IntegrationSlug = ""
	integ, err := f.orch.ResolveIntegration(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, f.integ.ID, integ.ID)

	ev.LinkedAccount.EndUserOriginID = "org-2"
	_, err = f.orch.ResolveIntegration(ctx, ev)
	require.Error(t, err, "linked account of another organization must not match")
}

func TestResyncApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.client.PutCandidate(chicagoCandidate("cand-1"))
	f.client.PutApplication(aiApplication("app-1", "cand-1"))

	_, err := f.orch.ResyncApplication(ctx, f.integ.ID, "app-1")
	require.ErrorIs(t, err, ErrCandidatePending)

	app, err := f.orch.ResyncApplication(ctx, f.integ.ID, "app-1")
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)

	require.NoError(t, f.store.SetIntegrationStatus(ctx, f.integ.ID, domain.IntegrationDisconnected))
	_, err = f.orch.ResyncApplication(ctx, f.integ.ID, "app-1")
	require.Error(t, err)
}

func TestHandleEvent_AuditFailureDoesNotFailSync(t *testing.T) {
	f := newFixture(t)
	f.store.FailAudit = assert.AnError
	f.client.PutCandidate(chicagoCandidate("cand-1"))

	res := f.orch.HandleEvent(context.Background(), f.event(domain.EventCandidateCreated, "cand-1"))
	assert.Equal(t, StatusProcessed, res.Status)
	assert.Equal(t, 1, f.store.CandidateCount())
}
