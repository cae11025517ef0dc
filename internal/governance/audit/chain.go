package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"hireguard.io/atssync/internal/domain"
)

// sealed is the hashed view of an event. Field order is fixed and Hash is
// excluded.
type sealed struct {
	ID             string                `json:"id"`
	OrganizationID string                `json:"organization_id"`
	IntegrationID  string                `json:"integration_id"`
	CandidateID    *string               `json:"candidate_id"`
	ApplicationID  *string               `json:"application_id"`
	EventType      domain.AuditEventType `json:"event_type"`
	Source         string                `json:"source"`
	Description    string                `json:"description"`
	Severity       domain.Severity       `json:"severity"`
	Metadata       interface{}           `json:"metadata"`
	OccurredAt     string                `json:"occurred_at"`
	PrevHash       string                `json:"prev_hash"`
}

// Normalize truncates OccurredAt to the precision the database keeps so a
// hash computed before insert still matches after a read.
func Normalize(ev *domain.AuditEvent) {
	ev.OccurredAt = ev.OccurredAt.UTC().Truncate(time.Microsecond)
	if ev.Metadata == nil {
		ev.Metadata = map[string]interface{}{}
	}
}

// ComputeHash returns the hex SHA-256 of the event's canonical form chained
// to ev.PrevHash.
func ComputeHash(ev *domain.AuditEvent) (string, error) {
	// Round-trip metadata through JSON so values decode to the same types a
	// stored row would.
	raw, err := json.Marshal(ev.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode audit metadata: %w", err)
	}
	var md interface{}
	if err := json.Unmarshal(raw, &md); err != nil {
		return "", fmt.Errorf("decode audit metadata: %w", err)
	}

	payload, err := json.Marshal(sealed{
		ID:             ev.ID,
		OrganizationID: ev.OrganizationID,
		IntegrationID:  ev.IntegrationID,
		CandidateID:    ev.CandidateID,
		ApplicationID:  ev.ApplicationID,
		EventType:      ev.EventType,
		Source:         ev.Source,
		Description:    ev.Description,
		Severity:       ev.Severity,
		Metadata:       md,
		OccurredAt:     ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		PrevHash:       ev.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("encode audit event: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Seal links ev to prevHash and sets its hash. prevHash is "" for the first
// event of an organization.
func Seal(prevHash string, ev *domain.AuditEvent) error {
	Normalize(ev)
	ev.PrevHash = prevHash
	h, err := ComputeHash(ev)
	if err != nil {
		return err
	}
	ev.Hash = h
	return nil
}

// ChainError describes the first broken link found by VerifyChain.
type ChainError struct {
	Index   int
	EventID string
	Reason  string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at index %d (event %s): %s", e.Index, e.EventID, e.Reason)
}

// VerifyChain checks that events, in append order and all from one
// organization, form an unbroken chain starting at the genesis hash.
func VerifyChain(events []domain.AuditEvent) error {
	prev := ""
	for i := range events {
		ev := events[i]
		if ev.PrevHash != prev {
			return &ChainError{Index: i, EventID: ev.ID, Reason: "prev_hash does not match preceding event"}
		}
		want, err := ComputeHash(&ev)
		if err != nil {
			return &ChainError{Index: i, EventID: ev.ID, Reason: err.Error()}
		}
		if ev.Hash != want {
			return &ChainError{Index: i, EventID: ev.ID, Reason: "hash does not match event contents"}
		}
		prev = ev.Hash
	}
	return nil
}
