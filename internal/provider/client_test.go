package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:             srv.URL + "/api/ats/v1",
		IntegrationsBaseURL: srv.URL + "/api/integrations",
		APIKey:              "test-key",
		Timeout:             2 * time.Second,
		PageSize:            50,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{PageSize: 500})
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultIntegrationsBaseURL, c.cfg.IntegrationsBaseURL)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Equal(t, DefaultPageSize, c.PageSize())
}

func TestClient_GetCandidate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/ats/v1/candidates/cand-1", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "acct-token", r.Header.Get("X-Account-Token"))
		assert.Equal(t, "true", r.URL.Query().Get("include_remote_data"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cand-1",
			"first_name": "Ada",
			"last_name": null,
			"email_addresses": [{"value": "ada@example.com", "email_address_type": "PERSONAL"}],
			"applications": ["app-1", {"id": "app-2"}],
			"locations": ["New York, NY"]
		}`))
	})

	cand, err := c.ForAccount("acct-token").GetCandidate(context.Background(), "cand-1", GetParams{IncludeRemoteData: true})
	require.NoError(t, err)
	assert.Equal(t, "cand-1", cand.ID)
	require.NotNil(t, cand.FirstName)
	assert.Equal(t, "Ada", *cand.FirstName)
	assert.Nil(t, cand.LastName)
	require.Len(t, cand.EmailAddresses, 1)
	assert.Equal(t, []Ref{{ID: "app-1"}, {ID: "app-2"}}, cand.Applications)
	assert.Equal(t, []string{"New York, NY"}, cand.Locations)
}

func TestClient_ForAccountDoesNotMutateParent(t *testing.T) {
	var tokens []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("X-Account-Token"))
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.ForAccount("a").GetAccountDetails(context.Background())
	require.NoError(t, err)
	_, err = c.GetAccountDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", ""}, tokens)
}

func TestClient_ListApplications_QueryAndRefs(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/ats/v1/applications", r.URL.Path)
		assert.Equal(t, "cur-1", q.Get("cursor"))
		assert.Equal(t, "50", q.Get("page_size"))
		assert.Equal(t, "2026-03-01T12:00:00Z", q.Get("modified_after"))
		assert.Equal(t, "cand-9", q.Get("candidate_id"))
		assert.Equal(t, "current_stage,job", q.Get("expand"))
		_, _ = w.Write([]byte(`{
			"next": null,
			"previous": "cur-0",
			"results": [{
				"id": "app-1",
				"candidate": "cand-9",
				"job": {"id": "job-1", "name": "Backend Engineer"},
				"current_stage": {"id": "st-1", "name": "AI Video Screen"},
				"reject_reason": null
			}]
		}`))
	})

	page, err := c.ListApplications(context.Background(), ListParams{
		Cursor:        "cur-1",
		ModifiedAfter: &since,
		Expand:        []string{"current_stage", "job"},
		Filters:       map[string]string{"candidate_id": "cand-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "", page.NextCursor())
	require.Len(t, page.Results, 1)
	app := page.Results[0]
	assert.Equal(t, "cand-9", app.CandidateID())
	assert.Equal(t, &Ref{ID: "job-1", Name: "Backend Engineer"}, app.Job)
	assert.Equal(t, "AI Video Screen", app.CurrentStage.Name)
	assert.Nil(t, app.RejectReason)
}

func TestClient_EmptyResultsIsEmptySlice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"next": null, "previous": null, "results": null}`))
	})
	page, err := c.ListOffices(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		transient bool
	}{
		{"not found", http.StatusNotFound, true, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
		{"rate limited", http.StatusTooManyRequests, false, true},
		{"server error", http.StatusBadGateway, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"nope"}`))
			})
			_, err := c.GetJob(context.Background(), "job-1", GetParams{})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, `{"detail":"nope"}`, apiErr.Body)
			assert.Equal(t, "/jobs/job-1", apiErr.Path)
			assert.Equal(t, tt.notFound, IsNotFound(err))
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GetCandidate(context.Background(), "slow", GetParams{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
}

func TestClient_IterateCandidates(t *testing.T) {
	pages := map[string]string{
		"":   `{"next": "p2", "results": [{"id": "c1"}, {"id": "c2"}]}`,
		"p2": `{"next": null, "results": [{"id": "c3"}]}`,
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("cursor")]))
	})

	var ids []string
	err := c.IterateCandidates(context.Background(), ListParams{}, func(cand Candidate) bool {
		ids = append(ids, cand.ID)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)

	ids = nil
	err = c.IterateCandidates(context.Background(), ListParams{}, func(cand Candidate) bool {
		ids = append(ids, cand.ID)
		return len(ids) < 2
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
}

func TestClient_AccountLifecycle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/integrations/create-link-token":
			assert.Equal(t, http.MethodPost, r.Method)
			var req LinkTokenRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "org-1", req.EndUserOriginID)
			assert.Equal(t, []string{"ats"}, req.Categories)
			_, _ = w.Write([]byte(`{"link_token": "lt-1"}`))
		case "/api/ats/v1/account-token/pub-1":
			_, _ = w.Write([]byte(`{"account_token": "acct-1", "integration": {"name": "Greenhouse", "slug": "greenhouse"}}`))
		case "/api/ats/v1/account-details":
			assert.Equal(t, "acct-1", r.Header.Get("X-Account-Token"))
			_, _ = w.Write([]byte(`{"id": "la-1", "integration_slug": "greenhouse", "end_user_origin_id": "org-1", "status": "COMPLETE"}`))
		case "/api/ats/v1/delete-account":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	lt, err := c.CreateLinkToken(ctx, LinkTokenRequest{EndUserOriginID: "org-1", EndUserOrganizationName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "lt-1", lt.LinkToken)

	tok, err := c.ExchangePublicToken(ctx, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", tok.AccountToken)
	assert.Equal(t, "greenhouse", tok.Integration.Slug)

	acct := c.ForAccount(tok.AccountToken)
	details, err := acct.GetAccountDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, "la-1", details.ID)
	assert.Equal(t, "org-1", details.EndUserOriginID)

	require.NoError(t, acct.DeleteAccount(ctx))
}

func TestRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want *Ref
	}{
		{`"abc"`, &Ref{ID: "abc"}},
		{`{"id":"abc","name":"Phone Screen"}`, &Ref{ID: "abc", Name: "Phone Screen"}},
		{`{"id":"abc","name":null}`, &Ref{ID: "abc"}},
		{`null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var holder struct {
				R *Ref `json:"r"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"r":`+tt.in+`}`), &holder))
			assert.Equal(t, tt.want, holder.R)
		})
	}
}
