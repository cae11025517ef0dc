package domain

import (
	"encoding/json"
	"strings"
)

// EventType is the normalized name of an inbound provider event.
type EventType string

const (
	EventCandidateCreated     EventType = "candidate.created"
	EventCandidateUpdated     EventType = "candidate.updated"
	EventApplicationCreated   EventType = "application.created"
	EventApplicationUpdated   EventType = "application.updated"
	EventSyncCompleted        EventType = "sync.completed"
	EventLinkedAccountDeleted EventType = "linked_account.deleted"
)

// aliases maps provider spellings that differ from the normalized form.
var aliases = map[string]EventType{
	"linkedaccount.sync_completed":  EventSyncCompleted,
	"linkedaccount.deleted":         EventLinkedAccountDeleted,
	"linked_account.sync_completed": EventSyncCompleted,
	"linked_account.deleted":        EventLinkedAccountDeleted,
	"sync.completed":                EventSyncCompleted,
	"sync_completed":                EventSyncCompleted,
}

// NormalizeEventType folds the provider's event spellings into EventType.
// "Candidate.added" and "candidate.changed" become "candidate.created" and
// "candidate.updated". Unrecognized names are lowercased and passed through
// so the dispatcher can treat them as unknown.
func NormalizeEventType(raw string) EventType {
	name := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := aliases[name]; ok {
		return t
	}
	model, action, ok := strings.Cut(name, ".")
	if !ok {
		return EventType(name)
	}
	switch action {
	case "added":
		action = "created"
	case "changed":
		action = "updated"
	}
	return EventType(model + "." + action)
}

// LinkedAccount is the connection context carried by every webhook.
type LinkedAccount struct {
	ID                      string `json:"id"`
	Integration             string `json:"integration"`
	IntegrationSlug         string `json:"integration_slug"`
	Category                string `json:"category"`
	EndUserOriginID         string `json:"end_user_origin_id"`
	EndUserOrganizationName string `json:"end_user_organization_name"`
	EndUserEmailAddress     string `json:"end_user_email_address"`
	Status                  string `json:"status"`
}

// WebhookEvent is a parsed delivery, ready for dispatch.
type WebhookEvent struct {
	HookID        string        `json:"hook_id"`
	RawEvent      string        `json:"raw_event"`
	Type          EventType     `json:"type"`
	LinkedAccount LinkedAccount `json:"linked_account"`
	// EntityID is data.id, empty for account-level events.
	EntityID string `json:"entity_id"`
	// Data is the raw data object; the orchestrator refetches the entity
	// instead of trusting it.
	Data json.RawMessage `json:"data,omitempty"`
}

// OrganizationID is the organization the provider account was linked for.
func (e *WebhookEvent) OrganizationID() string {
	return e.LinkedAccount.EndUserOriginID
}
