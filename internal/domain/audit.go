package domain

import "time"

// AuditEventType names an entry in the audit log.
type AuditEventType string

const (
	AuditCandidateSynced      AuditEventType = "candidate_synced"
	AuditApplicationSynced    AuditEventType = "application_synced"
	AuditApplicationDeferred  AuditEventType = "application_deferred"
	AuditComplianceAlert      AuditEventType = "compliance_alert"
	AuditSyncCompleted        AuditEventType = "sync_completed"
	AuditLinkedAccountDeleted AuditEventType = "linked_account_deleted"
	AuditIntegrationLinked    AuditEventType = "integration_linked"
)

// AuditSourceMergeWebhook marks events produced while handling a webhook.
const (
	AuditSourceMergeWebhook = "merge_webhook"
	AuditSourceBackfill     = "backfill"
	AuditSourceAPI          = "api"
	AuditSourceResync       = "deferred_resync"
)

// AuditEvent is an append-only log row. PrevHash and Hash chain the events of
// one organization so any edit or deletion is detectable.
type AuditEvent struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	IntegrationID  string                 `json:"integration_id"`
	CandidateID    *string                `json:"candidate_id,omitempty"`
	ApplicationID  *string                `json:"application_id,omitempty"`
	EventType      AuditEventType         `json:"event_type"`
	Source         string                 `json:"source"`
	Description    string                 `json:"description"`
	Severity       Severity               `json:"severity"`
	Metadata       map[string]interface{} `json:"metadata"`
	OccurredAt     time.Time              `json:"occurred_at"`
	PrevHash       string                 `json:"prev_hash"`
	Hash           string                 `json:"hash"`
}
