package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hireguard.io/atssync/internal/domain"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/secretbox"
)

const (
	pgForeignKeyViolation = "23503"
)

// PostgresStore implements the pipeline's persistence on PostgreSQL with
// raw SQL over a shared pgxpool. Account tokens are encrypted with box
// before they reach the database.
type PostgresStore struct {
	pool *pgxpool.Pool
	box  *secretbox.Box
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, box *secretbox.Box) *PostgresStore {
	return &PostgresStore{pool: pool, box: box}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const integrationColumns = `id, organization_id, provider_slug, linked_account_id, account_token_ciphertext,
	status, last_synced_at, created_at, updated_at`

func (s *PostgresStore) scanIntegration(row pgx.Row) (*domain.Integration, error) {
	var (
		i          domain.Integration
		ciphertext string
		status     string
	)
	if err := row.Scan(&i.ID, &i.OrganizationID, &i.ProviderSlug, &i.LinkedAccountID, &ciphertext,
		&status, &i.LastSyncedAt, &i.CreatedAt, &i.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan integration: %w", err)
	}
	token, err := s.box.Open(ciphertext, tokenAAD(i.OrganizationID, i.ProviderSlug))
	if err != nil {
		return nil, fmt.Errorf("decrypt account token for integration %s: %w", i.ID, err)
	}
	i.AccountToken = token
	i.Status = domain.IntegrationStatus(status)
	return &i, nil
}

// GetIntegration loads an integration by id.
func (s *PostgresStore) GetIntegration(ctx context.Context, id string) (*domain.Integration, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id)
	return s.scanIntegration(row)
}

// GetIntegrationByOrganization loads the integration for (orgID, slug).
func (s *PostgresStore) GetIntegrationByOrganization(ctx context.Context, orgID, slug string) (*domain.Integration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE organization_id = $1 AND provider_slug = $2`,
		orgID, slug)
	return s.scanIntegration(row)
}

// GetIntegrationByLinkedAccount loads the integration bound to an upstream
// linked account id.
func (s *PostgresStore) GetIntegrationByLinkedAccount(ctx context.Context, linkedAccountID string) (*domain.Integration, error) {
	if linkedAccountID == "" {
		return nil, apperrors.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE linked_account_id = $1
		ORDER BY updated_at DESC LIMIT 1`, linkedAccountID)
	return s.scanIntegration(row)
}

// CreateIntegration inserts an integration or, when (organization,
// provider) already exists, reconnects it with the new token. i.ID is set
// to the stored id. The result reports whether a row already existed.
func (s *PostgresStore) CreateIntegration(ctx context.Context, i *domain.Integration) (bool, error) {
	ciphertext, err := s.box.Seal(i.AccountToken, tokenAAD(i.OrganizationID, i.ProviderSlug))
	if err != nil {
		return false, fmt.Errorf("encrypt account token: %w", err)
	}
	if i.ID == "" {
		i.ID = newID()
	}
	if i.Status == "" {
		i.Status = domain.IntegrationConnected
	}
	var existed bool
	err = s.pool.QueryRow(ctx, `
		INSERT INTO integrations (id, organization_id, provider_slug, linked_account_id, account_token_ciphertext, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, provider_slug) DO UPDATE SET
			linked_account_id = EXCLUDED.linked_account_id,
			account_token_ciphertext = EXCLUDED.account_token_ciphertext,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING id, created_at, updated_at, (xmax <> 0)`,
		i.ID, i.OrganizationID, i.ProviderSlug, i.LinkedAccountID, ciphertext, string(i.Status),
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &existed)
	if err != nil {
		return false, fmt.Errorf("upsert integration: %w", err)
	}
	return existed, nil
}

// SetIntegrationStatus changes an integration's connection status.
func (s *PostgresStore) SetIntegrationStatus(ctx context.Context, id string, status domain.IntegrationStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE integrations SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update integration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkIntegrationSynced records a successful sync time.
func (s *PostgresStore) MarkIntegrationSynced(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE integrations SET last_synced_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark integration synced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpsertCandidate inserts or replaces the candidate keyed by
// (organization, remote id) and sets c.ID to the stored id.
func (s *PostgresStore) UpsertCandidate(ctx context.Context, c *domain.SyncedCandidate) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO synced_candidates (
			id, organization_id, integration_id, remote_id, first_name, last_name, company, title,
			contacts, locations, tags, application_remote_ids, is_private,
			remote_created_at, remote_updated_at, flags, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (organization_id, remote_id) DO UPDATE SET
			integration_id = EXCLUDED.integration_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			company = EXCLUDED.company,
			title = EXCLUDED.title,
			contacts = EXCLUDED.contacts,
			locations = EXCLUDED.locations,
			tags = EXCLUDED.tags,
			application_remote_ids = EXCLUDED.application_remote_ids,
			is_private = EXCLUDED.is_private,
			remote_created_at = EXCLUDED.remote_created_at,
			remote_updated_at = EXCLUDED.remote_updated_at,
			flags = EXCLUDED.flags,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = now()
		RETURNING id`,
		newID(), c.OrganizationID, c.IntegrationID, c.RemoteID, c.FirstName, c.LastName, c.Company, c.Title,
		list(c.Contacts), list(c.Locations), list(c.Tags), list(c.ApplicationRemoteIDs), c.IsPrivate,
		c.RemoteCreatedAt, c.RemoteUpdatedAt, list(c.Flags), c.LastSyncedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.RemoteID, err)
	}
	return nil
}

const candidateColumns = `id, organization_id, integration_id, remote_id, first_name, last_name, company, title,
	contacts, locations, tags, application_remote_ids, is_private,
	remote_created_at, remote_updated_at, flags, last_synced_at`

// GetCandidateByRemoteID loads a candidate by natural key.
func (s *PostgresStore) GetCandidateByRemoteID(ctx context.Context, orgID, remoteID string) (*domain.SyncedCandidate, error) {
	var c domain.SyncedCandidate
	err := s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM synced_candidates WHERE organization_id = $1 AND remote_id = $2`,
		orgID, remoteID,
	).Scan(&c.ID, &c.OrganizationID, &c.IntegrationID, &c.RemoteID, &c.FirstName, &c.LastName, &c.Company, &c.Title,
		&c.Contacts, &c.Locations, &c.Tags, &c.ApplicationRemoteIDs, &c.IsPrivate,
		&c.RemoteCreatedAt, &c.RemoteUpdatedAt, &c.Flags, &c.LastSyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get candidate %s: %w", remoteID, err)
	}
	return &c, nil
}

// UpsertApplication inserts or replaces the application keyed by
// (organization, remote id) and sets a.ID. A CandidateID that does not
// exist yields ErrCandidateReference.
func (s *PostgresStore) UpsertApplication(ctx context.Context, a *domain.SyncedApplication) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO synced_applications (
			id, organization_id, integration_id, remote_id, candidate_id, candidate_remote_id,
			job_remote_id, job_name, job_offices, current_stage_remote_id, current_stage_name, is_ai_stage,
			source, applied_at, rejected_at, reject_reason, flags, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (organization_id, remote_id) DO UPDATE SET
			integration_id = EXCLUDED.integration_id,
			candidate_id = EXCLUDED.candidate_id,
			candidate_remote_id = EXCLUDED.candidate_remote_id,
			job_remote_id = EXCLUDED.job_remote_id,
			job_name = EXCLUDED.job_name,
			job_offices = EXCLUDED.job_offices,
			current_stage_remote_id = EXCLUDED.current_stage_remote_id,
			current_stage_name = EXCLUDED.current_stage_name,
			is_ai_stage = EXCLUDED.is_ai_stage,
			source = EXCLUDED.source,
			applied_at = EXCLUDED.applied_at,
			rejected_at = EXCLUDED.rejected_at,
			reject_reason = EXCLUDED.reject_reason,
			flags = EXCLUDED.flags,
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = now()
		RETURNING id`,
		newID(), a.OrganizationID, a.IntegrationID, a.RemoteID, a.CandidateID, a.CandidateRemoteID,
		a.JobRemoteID, a.JobName, list(a.JobOffices), a.CurrentStageRemoteID, a.CurrentStageName, a.IsAIStage,
		a.Source, a.AppliedAt, a.RejectedAt, a.RejectReason, list(a.Flags), a.LastSyncedAt,
	).Scan(&a.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("upsert application %s: %w", a.RemoteID, ErrCandidateReference)
		}
		return fmt.Errorf("upsert application %s: %w", a.RemoteID, err)
	}
	return nil
}

// GetApplicationByRemoteID loads an application by natural key.
func (s *PostgresStore) GetApplicationByRemoteID(ctx context.Context, orgID, remoteID string) (*domain.SyncedApplication, error) {
	var a domain.SyncedApplication
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, integration_id, remote_id, candidate_id, candidate_remote_id,
			job_remote_id, job_name, job_offices, current_stage_remote_id, current_stage_name, is_ai_stage,
			source, applied_at, rejected_at, reject_reason, flags, last_synced_at
		FROM synced_applications WHERE organization_id = $1 AND remote_id = $2`,
		orgID, remoteID,
	).Scan(&a.ID, &a.OrganizationID, &a.IntegrationID, &a.RemoteID, &a.CandidateID, &a.CandidateRemoteID,
		&a.JobRemoteID, &a.JobName, &a.JobOffices, &a.CurrentStageRemoteID, &a.CurrentStageName, &a.IsAIStage,
		&a.Source, &a.AppliedAt, &a.RejectedAt, &a.RejectReason, &a.Flags, &a.LastSyncedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get application %s: %w", remoteID, err)
	}
	return &a, nil
}

// GetComplianceProfile loads an organization's compliance profile.
func (s *PostgresStore) GetComplianceProfile(ctx context.Context, orgID string) (*domain.ComplianceProfile, error) {
	p := domain.ComplianceProfile{OrganizationID: orgID}
	err := s.pool.QueryRow(ctx, `
		SELECT jurisdictions, ai_disclosure_on_file, human_review_policy_on_file
		FROM organization_compliance_profiles WHERE organization_id = $1`, orgID,
	).Scan(&p.Jurisdictions, &p.AIDisclosureOnFile, &p.HumanReviewPolicyOnFile)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get compliance profile: %w", err)
	}
	return &p, nil
}

// UpsertComplianceProfile writes an organization's compliance profile.
func (s *PostgresStore) UpsertComplianceProfile(ctx context.Context, p *domain.ComplianceProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organization_compliance_profiles (organization_id, jurisdictions, ai_disclosure_on_file, human_review_policy_on_file)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id) DO UPDATE SET
			jurisdictions = EXCLUDED.jurisdictions,
			ai_disclosure_on_file = EXCLUDED.ai_disclosure_on_file,
			human_review_policy_on_file = EXCLUDED.human_review_policy_on_file,
			updated_at = now()`,
		p.OrganizationID, list(p.Jurisdictions), p.AIDisclosureOnFile, p.HumanReviewPolicyOnFile)
	if err != nil {
		return fmt.Errorf("upsert compliance profile: %w", err)
	}
	return nil
}

// RecordDeferredApplication remembers an application waiting for its
// candidate. Re-recording refreshes the entry.
func (s *PostgresStore) RecordDeferredApplication(ctx context.Context, d *domain.DeferredApplication) error {
	if d.DeferredAt.IsZero() {
		d.DeferredAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deferred_applications (organization_id, application_remote_id, integration_id, candidate_remote_id, deferred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, application_remote_id) DO UPDATE SET
			integration_id = EXCLUDED.integration_id,
			candidate_remote_id = EXCLUDED.candidate_remote_id,
			deferred_at = EXCLUDED.deferred_at`,
		d.OrganizationID, d.ApplicationRemoteID, d.IntegrationID, d.CandidateRemoteID, d.DeferredAt)
	if err != nil {
		return fmt.Errorf("record deferred application: %w", err)
	}
	return nil
}

// ListDeferredApplications returns the applications waiting for one
// candidate, oldest first.
func (s *PostgresStore) ListDeferredApplications(ctx context.Context, orgID, candidateRemoteID string) ([]domain.DeferredApplication, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT organization_id, integration_id, application_remote_id, candidate_remote_id, deferred_at
		FROM deferred_applications
		WHERE organization_id = $1 AND candidate_remote_id = $2
		ORDER BY deferred_at, application_remote_id`, orgID, candidateRemoteID)
	if err != nil {
		return nil, fmt.Errorf("list deferred applications: %w", err)
	}
	defer rows.Close()

	out := []domain.DeferredApplication{}
	for rows.Next() {
		var d domain.DeferredApplication
		if err := rows.Scan(&d.OrganizationID, &d.IntegrationID, &d.ApplicationRemoteID, &d.CandidateRemoteID, &d.DeferredAt); err != nil {
			return nil, fmt.Errorf("scan deferred application: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDeferredApplication drops a deferred entry; a missing entry is not
// an error.
func (s *PostgresStore) DeleteDeferredApplication(ctx context.Context, orgID, applicationRemoteID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM deferred_applications WHERE organization_id = $1 AND application_remote_id = $2`,
		orgID, applicationRemoteID)
	if err != nil {
		return fmt.Errorf("delete deferred application: %w", err)
	}
	return nil
}

// AppendAuditEvent appends ev to its organization's chain. Appends for one
// organization are serialized with a transaction-scoped advisory lock.
func (s *PostgresStore) AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent, seal func(prevHash string) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ev.OrganizationID); err != nil {
		return fmt.Errorf("lock audit chain: %w", err)
	}

	var prevHash string
	err = tx.QueryRow(ctx,
		`SELECT hash FROM audit_events WHERE organization_id = $1 ORDER BY seq DESC LIMIT 1`,
		ev.OrganizationID).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read audit chain head: %w", err)
	}

	if err := seal(prevHash); err != nil {
		return fmt.Errorf("seal audit event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_events (
			id, organization_id, integration_id, candidate_id, application_id, event_type,
			source, description, severity, metadata, occurred_at, prev_hash, hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.OrganizationID, ev.IntegrationID, ev.CandidateID, ev.ApplicationID, string(ev.EventType),
		ev.Source, ev.Description, string(ev.Severity), ev.Metadata, ev.OccurredAt, ev.PrevHash, ev.Hash)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return tx.Commit(ctx)
}

// ListAuditEvents returns an organization's events in append order.
func (s *PostgresStore) ListAuditEvents(ctx context.Context, orgID string, filter AuditFilter) ([]domain.AuditEvent, error) {
	query := `
		SELECT id, organization_id, integration_id, candidate_id, application_id, event_type,
			source, description, severity, metadata, occurred_at, prev_hash, hash
		FROM audit_events WHERE organization_id = $1`
	args := []any{orgID}
	if filter.EventType != "" {
		args = append(args, string(filter.EventType))
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditEvent{}
	for rows.Next() {
		var (
			ev        domain.AuditEvent
			eventType string
			severity  string
		)
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.IntegrationID, &ev.CandidateID, &ev.ApplicationID, &eventType,
			&ev.Source, &ev.Description, &severity, &ev.Metadata, &ev.OccurredAt, &ev.PrevHash, &ev.Hash); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.EventType = domain.AuditEventType(eventType)
		ev.Severity = domain.Severity(severity)
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
