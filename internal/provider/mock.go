package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// MockClient is an in-memory stand-in for Client used by tests of the sync
// pipeline and HTTP handlers. Missing entities answer with a 404 APIError;
// Fail injects an error for one entity key.
type MockClient struct {
	mu           sync.Mutex
	candidates   map[string]*Candidate
	applications map[string]*Application
	jobs         map[string]*Job
	stages       map[string]*InterviewStage
	failures     map[string]error
	calls        []string

	// Account lifecycle fixtures.
	AccountToken   *AccountToken
	AccountDetails *AccountDetails
	LinkToken      *LinkToken
	Deleted        bool
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		candidates:   make(map[string]*Candidate),
		applications: make(map[string]*Application),
		jobs:         make(map[string]*Job),
		stages:       make(map[string]*InterviewStage),
		failures:     make(map[string]error),
	}
}

// PutCandidate seeds or replaces a candidate.
func (m *MockClient) PutCandidate(c Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[c.ID] = &c
}

// PutApplication seeds or replaces an application.
func (m *MockClient) PutApplication(a Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[a.ID] = &a
}

// PutJob seeds or replaces a job.
func (m *MockClient) PutJob(j Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = &j
}

// PutInterviewStage seeds or replaces a stage.
func (m *MockClient) PutInterviewStage(s InterviewStage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[s.ID] = &s
}

// Fail makes calls for kind/id return err. kind is one of candidate,
// application, job, stage, account.
func (m *MockClient) Fail(kind, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind+":"+id] = err
}

// Calls returns the "kind:id" keys requested so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount counts requests for one key.
func (m *MockClient) CallCount(key string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == key {
			n++
		}
	}
	return n
}

func (m *MockClient) record(kind, id string) error {
	key := kind + ":" + id
	m.calls = append(m.calls, key)
	return m.failures[key]
}

func notFound(path string) error {
	return &APIError{StatusCode: http.StatusNotFound, Body: `{"detail":"Not found."}`, Method: http.MethodGet, Path: path}
}

func lookup[T any](m *MockClient, kind, id string, items map[string]*T) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(kind, id); err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, notFound(fmt.Sprintf("/%ss/%s", kind, id))
	}
	cp := *item
	return &cp, nil
}

// GetCandidate implements the sync pipeline's resource client.
func (m *MockClient) GetCandidate(_ context.Context, id string, _ GetParams) (*Candidate, error) {
	return lookup(m, "candidate", id, m.candidates)
}

// GetApplication implements the sync pipeline's resource client.
func (m *MockClient) GetApplication(_ context.Context, id string, _ GetParams) (*Application, error) {
	return lookup(m, "application", id, m.applications)
}

// GetJob implements the sync pipeline's resource client.
func (m *MockClient) GetJob(_ context.Context, id string, _ GetParams) (*Job, error) {
	return lookup(m, "job", id, m.jobs)
}

// GetInterviewStage implements the sync pipeline's resource client.
func (m *MockClient) GetInterviewStage(_ context.Context, id string, _ GetParams) (*InterviewStage, error) {
	return lookup(m, "stage", id, m.stages)
}

func sortedValues[T any](items map[string]*T) []T {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, *items[k])
	}
	return out
}

// IterateCandidates visits seeded candidates in id order. ModifiedAfter is
// honored against ModifiedAt.
func (m *MockClient) IterateCandidates(ctx context.Context, p ListParams, fn func(Candidate) bool) error {
	m.mu.Lock()
	if err := m.record("candidates", "list"); err != nil {
		m.mu.Unlock()
		return err
	}
	items := sortedValues(m.candidates)
	m.mu.Unlock()
	for _, c := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.ModifiedAfter != nil && c.ModifiedAt != nil && !c.ModifiedAt.After(*p.ModifiedAfter) {
			continue
		}
		if !fn(c) {
			return nil
		}
	}
	return nil
}

// IterateApplications visits seeded applications in id order.
func (m *MockClient) IterateApplications(ctx context.Context, p ListParams, fn func(Application) bool) error {
	m.mu.Lock()
	if err := m.record("applications", "list"); err != nil {
		m.mu.Unlock()
		return err
	}
	items := sortedValues(m.applications)
	m.mu.Unlock()
	for _, a := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.ModifiedAfter != nil && a.ModifiedAt != nil && !a.ModifiedAt.After(*p.ModifiedAfter) {
			continue
		}
		if !fn(a) {
			return nil
		}
	}
	return nil
}

// CreateLinkToken returns the LinkToken fixture.
func (m *MockClient) CreateLinkToken(_ context.Context, req LinkTokenRequest) (*LinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("link_token", req.EndUserOriginID); err != nil {
		return nil, err
	}
	if m.LinkToken == nil {
		return &LinkToken{LinkToken: "link-" + req.EndUserOriginID}, nil
	}
	cp := *m.LinkToken
	return &cp, nil
}

// ExchangePublicToken returns the AccountToken fixture.
func (m *MockClient) ExchangePublicToken(_ context.Context, publicToken string) (*AccountToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("account_token", publicToken); err != nil {
		return nil, err
	}
	if m.AccountToken == nil {
		return nil, notFound("/account-token/" + publicToken)
	}
	cp := *m.AccountToken
	return &cp, nil
}

// GetAccountDetails returns the AccountDetails fixture.
func (m *MockClient) GetAccountDetails(context.Context) (*AccountDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("account", "details"); err != nil {
		return nil, err
	}
	if m.AccountDetails == nil {
		return nil, notFound("/account-details")
	}
	cp := *m.AccountDetails
	return &cp, nil
}

// DeleteAccount marks the mock account deleted.
func (m *MockClient) DeleteAccount(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("account", "delete"); err != nil {
		return err
	}
	m.Deleted = true
	return nil
}
