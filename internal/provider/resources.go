package provider

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListParams are shared by every list endpoint. Filters carries
// entity-scoping parameters such as candidate_id, job_id or status.
type ListParams struct {
	Cursor            string
	PageSize          int
	ModifiedAfter     *time.Time
	IncludeRemoteData bool
	Expand            []string
	Filters           map[string]string
}

func (p ListParams) values(defaultPageSize int) url.Values {
	q := url.Values{}
	if p.Cursor != "" {
		q.Set("cursor", p.Cursor)
	}
	size := p.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	q.Set("page_size", strconv.Itoa(size))
	if p.ModifiedAfter != nil {
		q.Set("modified_after", p.ModifiedAfter.UTC().Format(time.RFC3339))
	}
	if p.IncludeRemoteData {
		q.Set("include_remote_data", "true")
	}
	if len(p.Expand) > 0 {
		q.Set("expand", strings.Join(p.Expand, ","))
	}
	for k, v := range p.Filters {
		q.Set(k, v)
	}
	return q
}

// GetParams are accepted by single-entity fetches.
type GetParams struct {
	IncludeRemoteData bool
	Expand            []string
}

func (p GetParams) values() url.Values {
	q := url.Values{}
	if p.IncludeRemoteData {
		q.Set("include_remote_data", "true")
	}
	if len(p.Expand) > 0 {
		q.Set("expand", strings.Join(p.Expand, ","))
	}
	return q
}

func list[T any](ctx context.Context, c *Client, path string, p ListParams) (*Page[T], error) {
	var page Page[T]
	if err := c.get(ctx, path, p.values(c.cfg.PageSize), &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return &page, nil
}

func getOne[T any](ctx context.Context, c *Client, path, id string, p GetParams) (*T, error) {
	var out T
	if err := c.get(ctx, path+"/"+url.PathEscape(id), p.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCandidates lists candidates.
func (c *Client) ListCandidates(ctx context.Context, p ListParams) (*Page[Candidate], error) {
	return list[Candidate](ctx, c, "/candidates", p)
}

// ListApplications lists applications.
func (c *Client) ListApplications(ctx context.Context, p ListParams) (*Page[Application], error) {
	return list[Application](ctx, c, "/applications", p)
}

// ListJobs lists jobs.
func (c *Client) ListJobs(ctx context.Context, p ListParams) (*Page[Job], error) {
	return list[Job](ctx, c, "/jobs", p)
}

// ListOffices lists offices.
func (c *Client) ListOffices(ctx context.Context, p ListParams) (*Page[Office], error) {
	return list[Office](ctx, c, "/offices", p)
}

// ListInterviewStages lists job interview stages.
func (c *Client) ListInterviewStages(ctx context.Context, p ListParams) (*Page[InterviewStage], error) {
	return list[InterviewStage](ctx, c, "/job-interview-stages", p)
}

// ListActivities lists activities.
func (c *Client) ListActivities(ctx context.Context, p ListParams) (*Page[Activity], error) {
	return list[Activity](ctx, c, "/activities", p)
}

// GetCandidate fetches one candidate.
func (c *Client) GetCandidate(ctx context.Context, id string, p GetParams) (*Candidate, error) {
	return getOne[Candidate](ctx, c, "/candidates", id, p)
}

// GetApplication fetches one application.
func (c *Client) GetApplication(ctx context.Context, id string, p GetParams) (*Application, error) {
	return getOne[Application](ctx, c, "/applications", id, p)
}

// GetJob fetches one job. Pass Expand: []string{"offices"} to get office
// names.
func (c *Client) GetJob(ctx context.Context, id string, p GetParams) (*Job, error) {
	return getOne[Job](ctx, c, "/jobs", id, p)
}

// GetInterviewStage fetches one interview stage.
func (c *Client) GetInterviewStage(ctx context.Context, id string, p GetParams) (*InterviewStage, error) {
	return getOne[InterviewStage](ctx, c, "/job-interview-stages", id, p)
}
