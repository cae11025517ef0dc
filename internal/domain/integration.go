// Package domain holds the normalized records produced by the sync pipeline
// and the value types shared between its stages.
//
// Import Path: hireguard.io/atssync/internal/domain
package domain

import "time"

// IntegrationStatus is the connection state of an Integration.
type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

// Integration is one organization's connection to one upstream ATS account.
// Integrations are never hard-deleted; a deleted linked account only flips
// Status to disconnected.
type Integration struct {
	ID              string            `json:"id"`
	OrganizationID  string            `json:"organization_id"`
	ProviderSlug    string            `json:"provider_slug"`
	LinkedAccountID string            `json:"linked_account_id,omitempty"`
	AccountToken    string            `json:"-"`
	Status          IntegrationStatus `json:"status"`
	LastSyncedAt    *time.Time        `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Connected reports whether the integration is usable for fetches.
func (i *Integration) Connected() bool {
	return i != nil && i.Status == IntegrationConnected
}

// ComplianceProfile is the organization context the rule engine evaluates
// against. It is maintained by the dashboard; the pipeline only reads it.
type ComplianceProfile struct {
	OrganizationID string `json:"organization_id"`
	// Jurisdictions are catalog codes such as "US-NYC" or "US-IL".
	Jurisdictions []string `json:"jurisdictions"`
	// AIDisclosureOnFile is true once the org uploaded an AI-use disclosure.
	AIDisclosureOnFile bool `json:"ai_disclosure_on_file"`
	// HumanReviewPolicyOnFile is true once the org documented a human
	// review process for automated rejections.
	HumanReviewPolicyOnFile bool `json:"human_review_policy_on_file"`
}

// HasJurisdiction reports whether code is in the profile.
func (p ComplianceProfile) HasJurisdiction(code string) bool {
	for _, j := range p.Jurisdictions {
		if j == code {
			return true
		}
	}
	return false
}
