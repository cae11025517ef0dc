// Package audit builds and writes the append-only audit trail.
//
// Events are never updated or deleted. Each organization's events form a
// SHA-256 hash chain so edits and deletions are detectable with
// VerifyChain.
//
// Import Path: hireguard.io/atssync/internal/governance/audit
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/domain"
	"hireguard.io/atssync/internal/pkg/logger"
)

// Appender persists one event. The implementation must serialize appends
// per organization, call seal with the hash of the organization's latest
// event ("" if none), and insert ev only if seal succeeds.
type Appender interface {
	AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent, seal func(prevHash string) error) error
}

// Logger writes audit events to an Appender.
type Logger struct {
	store Appender
	now   func() time.Time
}

// NewLogger creates a new audit Logger.
func NewLogger(store Appender) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record assigns an id and timestamp when missing, seals ev into its
// organization's chain and appends it.
func (l *Logger) Record(ctx context.Context, ev domain.AuditEvent) (domain.AuditEvent, error) {
	if ev.ID == "" {
		ev.ID = generateAuditID()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = l.now()
	}
	err := l.store.AppendAuditEvent(ctx, &ev, func(prevHash string) error {
		return Seal(prevHash, &ev)
	})
	if err != nil {
		logger.Error("Failed to write audit event",
			zap.String("event_type", string(ev.EventType)),
			zap.String("org_id", ev.OrganizationID),
			zap.String("integration_id", ev.IntegrationID),
			zap.Error(err),
		)
		return ev, fmt.Errorf("write audit event: %w", err)
	}
	return ev, nil
}

// RecordAll records events in order. A failed event does not stop the
// rest; the joined error is returned.
func (l *Logger) RecordAll(ctx context.Context, events []domain.AuditEvent) error {
	var errs []error
	for _, ev := range events {
		if _, err := l.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func generateAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return fmt.Sprintf("audit-%s", id.String())
}
