package provider

import "context"

// pageFunc fetches one page starting at the cursor in p.
type pageFunc[T any] func(ctx context.Context, p ListParams) (*Page[T], error)

// iterate walks every page, calling fn per item until the last page, an
// error, or fn returning false. Cursor in p is the starting point.
func iterate[T any](ctx context.Context, fetch pageFunc[T], p ListParams, fn func(T) bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := fetch(ctx, p)
		if err != nil {
			return err
		}
		for _, item := range page.Results {
			if !fn(item) {
				return nil
			}
		}
		next := page.NextCursor()
		if next == "" || next == p.Cursor {
			return nil
		}
		p.Cursor = next
	}
}

// IterateCandidates visits every candidate matching p.
func (c *Client) IterateCandidates(ctx context.Context, p ListParams, fn func(Candidate) bool) error {
	return iterate[Candidate](ctx, c.ListCandidates, p, fn)
}

// IterateApplications visits every application matching p.
func (c *Client) IterateApplications(ctx context.Context, p ListParams, fn func(Application) bool) error {
	return iterate[Application](ctx, c.ListApplications, p, fn)
}
