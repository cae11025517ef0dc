package audit

import (
	"context"
	"fmt"
	"time"

	"hireguard.io/atssync/internal/domain"
)

// Meta is the ambient context stamped on every event built here.
type Meta struct {
	Source    string
	At        time.Time
	RequestID string
}

func newEvent(orgID, integrationID string, t domain.AuditEventType, sev domain.Severity, desc string, m Meta) domain.AuditEvent {
	md := map[string]interface{}{}
	if m.RequestID != "" {
		md["request_id"] = m.RequestID
	}
	return domain.AuditEvent{
		OrganizationID: orgID,
		IntegrationID:  integrationID,
		EventType:      t,
		Source:         m.Source,
		Description:    desc,
		Severity:       sev,
		Metadata:       md,
		OccurredAt:     m.At,
	}
}

func idPtr(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// CandidateSynced records a persisted candidate.
func CandidateSynced(c *domain.SyncedCandidate, m Meta) domain.AuditEvent {
	ev := newEvent(c.OrganizationID, c.IntegrationID, domain.AuditCandidateSynced, domain.SeverityInfo,
		fmt.Sprintf("Candidate %s synced from ATS", displayName(c.FullName(), c.RemoteID)), m)
	ev.CandidateID = idPtr(c.ID)
	ev.Metadata["remote_id"] = c.RemoteID
	ev.Metadata["flag_count"] = len(c.Flags)
	return ev
}

// ApplicationSynced records a persisted application.
func ApplicationSynced(a *domain.SyncedApplication, m Meta) domain.AuditEvent {
	desc := fmt.Sprintf("Application %s synced from ATS", a.RemoteID)
	if a.JobName != nil {
		desc = fmt.Sprintf("Application %s for %s synced from ATS", a.RemoteID, *a.JobName)
	}
	ev := newEvent(a.OrganizationID, a.IntegrationID, domain.AuditApplicationSynced, domain.SeverityInfo, desc, m)
	ev.CandidateID = idPtr(a.CandidateID)
	ev.ApplicationID = idPtr(a.ID)
	ev.Metadata["remote_id"] = a.RemoteID
	ev.Metadata["flag_count"] = len(a.Flags)
	if a.CurrentStageName != nil {
		ev.Metadata["current_stage"] = *a.CurrentStageName
	}
	if a.IsAIStage != nil {
		ev.Metadata["is_ai_stage"] = *a.IsAIStage
	}
	return ev
}

// ComplianceAlert records one flag. Severity follows the flag.
func ComplianceAlert(orgID, integrationID string, candidateID, applicationID string, flag domain.ComplianceFlag, m Meta) domain.AuditEvent {
	ev := newEvent(orgID, integrationID, domain.AuditComplianceAlert, flag.Severity, flag.Message, m)
	ev.CandidateID = idPtr(candidateID)
	ev.ApplicationID = idPtr(applicationID)
	ev.Metadata["flag_type"] = flag.Type
	if flag.Jurisdiction != "" {
		ev.Metadata["jurisdiction"] = flag.Jurisdiction
	}
	return ev
}

// CandidateAlerts builds one compliance alert per candidate flag.
func CandidateAlerts(c *domain.SyncedCandidate, m Meta) []domain.AuditEvent {
	out := make([]domain.AuditEvent, 0, len(c.Flags))
	for _, f := range c.Flags {
		out = append(out, ComplianceAlert(c.OrganizationID, c.IntegrationID, c.ID, "", f, m))
	}
	return out
}

// ApplicationAlerts builds one compliance alert per application flag.
func ApplicationAlerts(a *domain.SyncedApplication, m Meta) []domain.AuditEvent {
	out := make([]domain.AuditEvent, 0, len(a.Flags))
	for _, f := range a.Flags {
		out = append(out, ComplianceAlert(a.OrganizationID, a.IntegrationID, a.CandidateID, a.ID, f, m))
	}
	return out
}

// SyncCompleted records a finished upstream sync or backfill. counts is
// optional per-model totals.
func SyncCompleted(i *domain.Integration, counts map[string]int, m Meta) domain.AuditEvent {
	ev := newEvent(i.OrganizationID, i.ID, domain.AuditSyncCompleted, domain.SeverityInfo,
		fmt.Sprintf("ATS sync completed for %s", i.ProviderSlug), m)
	ev.Metadata["provider_slug"] = i.ProviderSlug
	for k, v := range counts {
		ev.Metadata[k] = v
	}
	return ev
}

// LinkedAccountDeleted records the upstream account being unlinked.
func LinkedAccountDeleted(i *domain.Integration, m Meta) domain.AuditEvent {
	ev := newEvent(i.OrganizationID, i.ID, domain.AuditLinkedAccountDeleted, domain.SeverityWarning,
		fmt.Sprintf("ATS account for %s was disconnected; synced records are retained", i.ProviderSlug), m)
	ev.Metadata["provider_slug"] = i.ProviderSlug
	ev.Metadata["linked_account_id"] = i.LinkedAccountID
	return ev
}

// IntegrationLinked records a completed account link. reconnected is true
// when an existing integration was re-linked.
func IntegrationLinked(i *domain.Integration, reconnected bool, m Meta) domain.AuditEvent {
	desc := fmt.Sprintf("ATS account %s linked", i.ProviderSlug)
	if reconnected {
		desc = fmt.Sprintf("ATS account %s re-linked", i.ProviderSlug)
	}
	ev := newEvent(i.OrganizationID, i.ID, domain.AuditIntegrationLinked, domain.SeverityInfo, desc, m)
	ev.Metadata["provider_slug"] = i.ProviderSlug
	ev.Metadata["linked_account_id"] = i.LinkedAccountID
	ev.Metadata["reconnected"] = reconnected
	return ev
}

// ApplicationDeferred records an application held back until its candidate
// is synced. candidateID is the internal id when the inline candidate sync
// succeeded, "" otherwise.
func ApplicationDeferred(d *domain.DeferredApplication, candidateID string, m Meta) domain.AuditEvent {
	ev := newEvent(d.OrganizationID, d.IntegrationID, domain.AuditApplicationDeferred, domain.SeverityInfo,
		fmt.Sprintf("Application %s deferred until candidate %s is synced", d.ApplicationRemoteID, d.CandidateRemoteID), m)
	ev.CandidateID = idPtr(candidateID)
	ev.Metadata["application_remote_id"] = d.ApplicationRemoteID
	ev.Metadata["candidate_remote_id"] = d.CandidateRemoteID
	return ev
}

func displayName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

type requestIDKey struct{}

// WithRequestID attaches the inbound request id so events recorded further
// down the call chain can be correlated with access logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// MetaFromContext builds a Meta for source, taking the request id from ctx.
func MetaFromContext(ctx context.Context, source string, at time.Time) Meta {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return Meta{Source: source, At: at, RequestID: rid}
}
