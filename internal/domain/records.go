package domain

import "time"

// ContactKind distinguishes entries in SyncedCandidate.Contacts.
type ContactKind string

const (
	ContactEmail ContactKind = "email"
	ContactPhone ContactKind = "phone"
)

// ContactMethod is one flattened email address or phone number.
type ContactMethod struct {
	Kind  ContactKind `json:"kind"`
	Value string      `json:"value"`
	// Type is the upstream label (PERSONAL, WORK, MOBILE, ...), empty if unknown.
	Type string `json:"type"`
}

// SyncedCandidate is the normalized candidate record. (OrganizationID,
// RemoteID) is its natural key.
type SyncedCandidate struct {
	ID                   string           `json:"id"`
	OrganizationID       string           `json:"organization_id"`
	IntegrationID        string           `json:"integration_id"`
	RemoteID             string           `json:"remote_id"`
	FirstName            string           `json:"first_name"`
	LastName             string           `json:"last_name"`
	Company              string           `json:"company"`
	Title                string           `json:"title"`
	Contacts             []ContactMethod  `json:"contacts"`
	Locations            []string         `json:"locations"`
	Tags                 []string         `json:"tags"`
	ApplicationRemoteIDs []string         `json:"application_remote_ids"`
	IsPrivate            bool             `json:"is_private"`
	RemoteCreatedAt      *time.Time       `json:"remote_created_at"`
	RemoteUpdatedAt      *time.Time       `json:"remote_updated_at"`
	Flags                []ComplianceFlag `json:"flags"`
	LastSyncedAt         time.Time        `json:"last_synced_at"`
}

// FullName joins first and last name, skipping empty parts.
func (c *SyncedCandidate) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// HasEmail reports whether at least one email contact exists.
func (c *SyncedCandidate) HasEmail() bool {
	for _, m := range c.Contacts {
		if m.Kind == ContactEmail && m.Value != "" {
			return true
		}
	}
	return false
}

// SyncedApplication is the normalized application record. CandidateID is the
// internal id of a SyncedCandidate that must exist before the application is
// persisted.
type SyncedApplication struct {
	ID                   string           `json:"id"`
	OrganizationID       string           `json:"organization_id"`
	IntegrationID        string           `json:"integration_id"`
	RemoteID             string           `json:"remote_id"`
	CandidateID          string           `json:"candidate_id"`
	CandidateRemoteID    string           `json:"candidate_remote_id"`
	JobRemoteID          string           `json:"job_remote_id"`
	JobName              *string          `json:"job_name"`
	JobOffices           []string         `json:"job_offices"`
	CurrentStageRemoteID string           `json:"current_stage_remote_id"`
	CurrentStageName     *string          `json:"current_stage_name"`
	IsAIStage            *bool            `json:"is_ai_stage"`
	Source               string           `json:"source"`
	AppliedAt            *time.Time       `json:"applied_at"`
	RejectedAt           *time.Time       `json:"rejected_at"`
	RejectReason         *string          `json:"reject_reason"`
	Flags                []ComplianceFlag `json:"flags"`
	LastSyncedAt         time.Time        `json:"last_synced_at"`
}

// Rejected reports whether the application carries a rejection timestamp.
func (a *SyncedApplication) Rejected() bool {
	return a.RejectedAt != nil
}

// AtAIStage is true only when the stage was resolved and classified as AI.
func (a *SyncedApplication) AtAIStage() bool {
	return a.IsAIStage != nil && *a.IsAIStage
}

// DeferredApplication records an application whose candidate was missing when
// its event arrived. The entry is drained on the next sync of that candidate.
type DeferredApplication struct {
	OrganizationID      string    `json:"organization_id"`
	IntegrationID       string    `json:"integration_id"`
	ApplicationRemoteID string    `json:"application_remote_id"`
	CandidateRemoteID   string    `json:"candidate_remote_id"`
	DeferredAt          time.Time `json:"deferred_at"`
}
