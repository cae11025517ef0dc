// Package repository persists integrations, synced records, deferred
// applications and the audit log.
//
// PostgresStore is the production implementation; MemoryStore has the same
// semantics and backs tests and local runs without a database.
//
// Import Path: hireguard.io/atssync/internal/repository
package repository

import (
	"errors"

	"github.com/google/uuid"

	"hireguard.io/atssync/internal/domain"
)

// ErrCandidateReference is returned when an application references a
// candidate id that is not stored.
var ErrCandidateReference = errors.New("application references unknown candidate")

// AuditFilter narrows ListAuditEvents. Zero values mean no filter.
type AuditFilter struct {
	EventType domain.AuditEventType
	// Limit caps the result; events are returned oldest first.
	Limit int
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// tokenAAD binds an encrypted account token to its integration's natural
// key, which survives reconnects.
func tokenAAD(orgID, slug string) string {
	return orgID + "/" + slug
}

func list[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func cloneCandidate(c domain.SyncedCandidate) domain.SyncedCandidate {
	c.Contacts = append([]domain.ContactMethod{}, c.Contacts...)
	c.Locations = append([]string{}, c.Locations...)
	c.Tags = append([]string{}, c.Tags...)
	c.ApplicationRemoteIDs = append([]string{}, c.ApplicationRemoteIDs...)
	c.Flags = append([]domain.ComplianceFlag{}, c.Flags...)
	return c
}

func cloneApplication(a domain.SyncedApplication) domain.SyncedApplication {
	a.JobOffices = append([]string{}, a.JobOffices...)
	a.Flags = append([]domain.ComplianceFlag{}, a.Flags...)
	return a
}

func cloneAuditEvent(ev domain.AuditEvent) domain.AuditEvent {
	md := make(map[string]interface{}, len(ev.Metadata))
	for k, v := range ev.Metadata {
		md[k] = v
	}
	ev.Metadata = md
	return ev
}
