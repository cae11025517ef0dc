package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hireguard.io/atssync/internal/domain"
)

type memAppender struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	fail   error
}

func (m *memAppender) AppendAuditEvent(_ context.Context, ev *domain.AuditEvent, seal func(string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	prev := ""
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].OrganizationID == ev.OrganizationID {
			prev = m.events[i].Hash
			break
		}
	}
	if err := seal(prev); err != nil {
		return err
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memAppender) org(id string) []domain.AuditEvent {
	var out []domain.AuditEvent
	for _, ev := range m.events {
		if ev.OrganizationID == id {
			out = append(out, ev)
		}
	}
	return out
}

var meta = Meta{Source: domain.AuditSourceMergeWebhook, At: time.Date(2026, 6, 1, 9, 30, 0, 123456789, time.UTC), RequestID: "req-1"}

func TestFactories(t *testing.T) {
	job := "Engineer"
	stage := "AI Video Screen"
	yes := true
	c := &domain.SyncedCandidate{ID: "c-int", OrganizationID: "org", IntegrationID: "int", RemoteID: "c1", FirstName: "Ada",
		Flags: []domain.ComplianceFlag{{Type: "no_notice_channel", Severity: domain.SeverityWarning, Message: "m"}}}
	a := &domain.SyncedApplication{ID: "a-int", OrganizationID: "org", IntegrationID: "int", RemoteID: "a1", CandidateID: "c-int",
		JobName: &job, CurrentStageName: &stage, IsAIStage: &yes,
		Flags: []domain.ComplianceFlag{
			{Type: "ai_disclosure_missing", Severity: domain.SeverityCritical, Message: "x"},
			{Type: "ai_notice_required", Severity: domain.SeverityWarning, Message: "y", Jurisdiction: "US-NYC"},
		}}
	i := &domain.Integration{ID: "int", OrganizationID: "org", ProviderSlug: "greenhouse", LinkedAccountID: "la"}

	ev := CandidateSynced(c, meta)
	assert.Equal(t, domain.AuditCandidateSynced, ev.EventType)
	assert.Equal(t, "c-int", *ev.CandidateID)
	assert.Nil(t, ev.ApplicationID)
	assert.Equal(t, domain.AuditSourceMergeWebhook, ev.Source)
	assert.Equal(t, "req-1", ev.Metadata["request_id"])
	assert.Contains(t, ev.Description, "Ada")
	assert.Equal(t, meta.At, ev.OccurredAt)
	assert.Empty(t, ev.ID)

	ev = ApplicationSynced(a, meta)
	assert.Equal(t, domain.AuditApplicationSynced, ev.EventType)
	assert.Equal(t, "a-int", *ev.ApplicationID)
	assert.Equal(t, "c-int", *ev.CandidateID)
	assert.Equal(t, true, ev.Metadata["is_ai_stage"])
	assert.Contains(t, ev.Description, "Engineer")

	alerts := ApplicationAlerts(a, meta)
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "US-NYC", alerts[1].Metadata["jurisdiction"])
	assert.Equal(t, domain.AuditComplianceAlert, alerts[1].EventType)
	require.Len(t, CandidateAlerts(c, meta), 1)
	assert.Nil(t, CandidateAlerts(c, meta)[0].ApplicationID)

	ev = LinkedAccountDeleted(i, meta)
	assert.Equal(t, domain.SeverityWarning, ev.Severity)
	assert.Equal(t, "int", ev.IntegrationID)

	ev = SyncCompleted(i, map[string]int{"candidates": 3}, meta)
	assert.Equal(t, 3, ev.Metadata["candidates"])

	ev = IntegrationLinked(i, true, meta)
	assert.Contains(t, ev.Description, "re-linked")

	ev = ApplicationDeferred(&domain.DeferredApplication{OrganizationID: "org", IntegrationID: "int", ApplicationRemoteID: "a1", CandidateRemoteID: "c1"}, "", meta)
	assert.Nil(t, ev.CandidateID)
	assert.Equal(t, "c1", ev.Metadata["candidate_remote_id"])
}

func TestLogger_RecordChainsPerOrganization(t *testing.T) {
	store := &memAppender{}
	l := NewLogger(store)
	ctx := context.Background()
	i1 := &domain.Integration{ID: "i1", OrganizationID: "org-1", ProviderSlug: "greenhouse"}
	i2 := &domain.Integration{ID: "i2", OrganizationID: "org-2", ProviderSlug: "lever"}

	require.NoError(t, l.RecordAll(ctx, []domain.AuditEvent{
		SyncCompleted(i1, nil, meta),
		SyncCompleted(i2, nil, meta),
		LinkedAccountDeleted(i1, meta),
	}))

	org1 := store.org("org-1")
	require.Len(t, org1, 2)
	assert.Equal(t, "", org1[0].PrevHash)
	assert.Equal(t, org1[0].Hash, org1[1].PrevHash)
	assert.True(t, strings.HasPrefix(org1[0].ID, "audit-"))
	assert.Equal(t, meta.At.Truncate(time.Microsecond), org1[0].OccurredAt)
	require.NoError(t, VerifyChain(org1))
	require.NoError(t, VerifyChain(store.org("org-2")))
}

func TestLogger_RecordDefaultsTimestamp(t *testing.T) {
	store := &memAppender{}
	l := NewLogger(store)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ev, err := l.Record(context.Background(), domain.AuditEvent{OrganizationID: "o", EventType: domain.AuditSyncCompleted})
	require.NoError(t, err)
	assert.Equal(t, fixed, ev.OccurredAt)
	assert.NotEmpty(t, ev.Hash)
}

func TestLogger_RecordError(t *testing.T) {
	store := &memAppender{fail: errors.New("db down")}
	l := NewLogger(store)
	err := l.RecordAll(context.Background(), []domain.AuditEvent{{OrganizationID: "o"}, {OrganizationID: "o"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	store := &memAppender{}
	l := NewLogger(store)
	i := &domain.Integration{ID: "i", OrganizationID: "org", ProviderSlug: "greenhouse"}
	for n := 0; n < 4; n++ {
		_, err := l.Record(context.Background(), SyncCompleted(i, map[string]int{"n": n}, meta))
		require.NoError(t, err)
	}
	events := store.org("org")
	require.NoError(t, VerifyChain(events))

	tests := []struct {
		name   string
		mutate func([]domain.AuditEvent) []domain.AuditEvent
		index  int
	}{
		{"edited description", func(e []domain.AuditEvent) []domain.AuditEvent {
			e[2].Description = "nothing happened"
			return e
		}, 2},
		{"edited metadata", func(e []domain.AuditEvent) []domain.AuditEvent {
			e[1].Metadata = map[string]interface{}{"n": 99}
			return e
		}, 1},
		{"deleted event", func(e []domain.AuditEvent) []domain.AuditEvent {
			return append(e[:1], e[2:]...)
		}, 1},
		{"reordered", func(e []domain.AuditEvent) []domain.AuditEvent {
			e[0], e[1] = e[1], e[0]
			return e
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := make([]domain.AuditEvent, len(events))
			copy(copied, events)
			err := VerifyChain(tt.mutate(copied))
			var chainErr *ChainError
			require.ErrorAs(t, err, &chainErr)
			assert.Equal(t, tt.index, chainErr.Index)
		})
	}
}

func TestComputeHash_StableAcrossMetadataRoundTrip(t *testing.T) {
	ev := domain.AuditEvent{ID: "a", OrganizationID: "o", Metadata: map[string]interface{}{"count": 3, "ok": true}}
	require.NoError(t, Seal("", &ev))

	stored := ev
	stored.Metadata = map[string]interface{}{"count": float64(3), "ok": true}
	h, err := ComputeHash(&stored)
	require.NoError(t, err)
	assert.Equal(t, ev.Hash, h)
}
