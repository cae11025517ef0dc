package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hireguard.io/atssync/internal/domain"
	apperrors "hireguard.io/atssync/internal/pkg/errors"
)

type naturalKey struct{ org, remote string }

// MemoryStore is an in-process store with PostgresStore semantics. It is
// safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	integrations map[string]domain.Integration
	candidates   map[naturalKey]domain.SyncedCandidate
	candidateIDs map[string]naturalKey
	applications map[naturalKey]domain.SyncedApplication
	profiles     map[string]domain.ComplianceProfile
	deferred     map[naturalKey]domain.DeferredApplication
	audit        []domain.AuditEvent

	// FailAudit, when set, is returned by every AppendAuditEvent call.
	FailAudit error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		integrations: make(map[string]domain.Integration),
		candidates:   make(map[naturalKey]domain.SyncedCandidate),
		candidateIDs: make(map[string]naturalKey),
		applications: make(map[naturalKey]domain.SyncedApplication),
		profiles:     make(map[string]domain.ComplianceProfile),
		deferred:     make(map[naturalKey]domain.DeferredApplication),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// GetIntegration loads an integration by id.
func (s *MemoryStore) GetIntegration(_ context.Context, id string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.integrations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &i, nil
}

// GetIntegrationByOrganization loads the integration for (orgID, slug).
func (s *MemoryStore) GetIntegrationByOrganization(_ context.Context, orgID, slug string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.integrations {
		if i.OrganizationID == orgID && i.ProviderSlug == slug {
			return &i, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// GetIntegrationByLinkedAccount loads the most recently updated integration
// bound to linkedAccountID.
func (s *MemoryStore) GetIntegrationByLinkedAccount(_ context.Context, linkedAccountID string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Integration
	for _, i := range s.integrations {
		if linkedAccountID == "" || i.LinkedAccountID != linkedAccountID {
			continue
		}
		if found == nil || i.UpdatedAt.After(found.UpdatedAt) {
			i := i
			found = &i
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return found, nil
}

// CreateIntegration inserts or reconnects the integration for
// (organization, provider).
func (s *MemoryStore) CreateIntegration(_ context.Context, i *domain.Integration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if i.Status == "" {
		i.Status = domain.IntegrationConnected
	}
	for id, existing := range s.integrations {
		if existing.OrganizationID == i.OrganizationID && existing.ProviderSlug == i.ProviderSlug {
			existing.LinkedAccountID = i.LinkedAccountID
			existing.AccountToken = i.AccountToken
			existing.Status = i.Status
			existing.UpdatedAt = now
			s.integrations[id] = existing
			*i = existing
			return true, nil
		}
	}
	if i.ID == "" {
		i.ID = newID()
	}
	i.CreatedAt, i.UpdatedAt = now, now
	s.integrations[i.ID] = *i
	return false, nil
}

// SetIntegrationStatus changes an integration's connection status.
func (s *MemoryStore) SetIntegrationStatus(_ context.Context, id string, status domain.IntegrationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	i.Status = status
	i.UpdatedAt = time.Now().UTC()
	s.integrations[id] = i
	return nil
}

// MarkIntegrationSynced records a successful sync time.
func (s *MemoryStore) MarkIntegrationSynced(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	at = at.UTC()
	i.LastSyncedAt = &at
	i.UpdatedAt = time.Now().UTC()
	s.integrations[id] = i
	return nil
}

// UpsertCandidate inserts or replaces the candidate by natural key.
func (s *MemoryStore) UpsertCandidate(_ context.Context, c *domain.SyncedCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := naturalKey{c.OrganizationID, c.RemoteID}
	if existing, ok := s.candidates[key]; ok {
		c.ID = existing.ID
	} else {
		c.ID = newID()
	}
	s.candidates[key] = cloneCandidate(*c)
	s.candidateIDs[c.ID] = key
	return nil
}

// GetCandidateByRemoteID loads a candidate by natural key.
func (s *MemoryStore) GetCandidateByRemoteID(_ context.Context, orgID, remoteID string) (*domain.SyncedCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[naturalKey{orgID, remoteID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c = cloneCandidate(c)
	return &c, nil
}

// UpsertApplication inserts or replaces the application by natural key.
func (s *MemoryStore) UpsertApplication(_ context.Context, a *domain.SyncedApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidateIDs[a.CandidateID]; !ok {
		return fmt.Errorf("upsert application %s: %w", a.RemoteID, ErrCandidateReference)
	}
	key := naturalKey{a.OrganizationID, a.RemoteID}
	if existing, ok := s.applications[key]; ok {
		a.ID = existing.ID
	} else {
		a.ID = newID()
	}
	s.applications[key] = cloneApplication(*a)
	return nil
}

// GetApplicationByRemoteID loads an application by natural key.
func (s *MemoryStore) GetApplicationByRemoteID(_ context.Context, orgID, remoteID string) (*domain.SyncedApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[naturalKey{orgID, remoteID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	a = cloneApplication(a)
	return &a, nil
}

// GetComplianceProfile loads an organization's compliance profile.
func (s *MemoryStore) GetComplianceProfile(_ context.Context, orgID string) (*domain.ComplianceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[orgID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	p.Jurisdictions = append([]string{}, p.Jurisdictions...)
	return &p, nil
}

// UpsertComplianceProfile writes an organization's compliance profile.
func (s *MemoryStore) UpsertComplianceProfile(_ context.Context, p *domain.ComplianceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Jurisdictions = append([]string{}, p.Jurisdictions...)
	s.profiles[p.OrganizationID] = cp
	return nil
}

// RecordDeferredApplication remembers an application waiting for its
// candidate.
func (s *MemoryStore) RecordDeferredApplication(_ context.Context, d *domain.DeferredApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.DeferredAt.IsZero() {
		d.DeferredAt = time.Now().UTC()
	}
	s.deferred[naturalKey{d.OrganizationID, d.ApplicationRemoteID}] = *d
	return nil
}

// ListDeferredApplications returns the applications waiting for one
// candidate, oldest first.
func (s *MemoryStore) ListDeferredApplications(_ context.Context, orgID, candidateRemoteID string) ([]domain.DeferredApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.DeferredApplication{}
	for _, d := range s.deferred {
		if d.OrganizationID == orgID && d.CandidateRemoteID == candidateRemoteID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeferredAt.Equal(out[j].DeferredAt) {
			return out[i].DeferredAt.Before(out[j].DeferredAt)
		}
		return out[i].ApplicationRemoteID < out[j].ApplicationRemoteID
	})
	return out, nil
}

// DeleteDeferredApplication drops a deferred entry.
func (s *MemoryStore) DeleteDeferredApplication(_ context.Context, orgID, applicationRemoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deferred, naturalKey{orgID, applicationRemoteID})
	return nil
}

// AppendAuditEvent appends ev to its organization's chain.
func (s *MemoryStore) AppendAuditEvent(_ context.Context, ev *domain.AuditEvent, seal func(prevHash string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAudit != nil {
		return s.FailAudit
	}
	prev := ""
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].OrganizationID == ev.OrganizationID {
			prev = s.audit[i].Hash
			break
		}
	}
	if err := seal(prev); err != nil {
		return fmt.Errorf("seal audit event: %w", err)
	}
	s.audit = append(s.audit, cloneAuditEvent(*ev))
	return nil
}

// ListAuditEvents returns an organization's events in append order.
func (s *MemoryStore) ListAuditEvents(_ context.Context, orgID string, filter AuditFilter) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.AuditEvent{}
	for _, ev := range s.audit {
		if ev.OrganizationID != orgID {
			continue
		}
		if filter.EventType != "" && ev.EventType != filter.EventType {
			continue
		}
		out = append(out, cloneAuditEvent(ev))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// CandidateCount returns the number of stored candidates.
func (s *MemoryStore) CandidateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.candidates)
}

// ApplicationCount returns the number of stored applications.
func (s *MemoryStore) ApplicationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.applications)
}

// AuditEventCount returns the number of stored audit events.
func (s *MemoryStore) AuditEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}
