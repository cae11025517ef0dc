package provider

import (
	"context"
	"net/http"
	"net/url"
)

// CategoryATS is the only integration category this service links.
const CategoryATS = "ats"

// LinkTokenRequest starts an account-linking session for one organization.
type LinkTokenRequest struct {
	EndUserOriginID         string   `json:"end_user_origin_id"`
	EndUserOrganizationName string   `json:"end_user_organization_name"`
	EndUserEmailAddress     string   `json:"end_user_email_address"`
	Categories              []string `json:"categories"`
	Integration             string   `json:"integration,omitempty"`
}

// LinkToken is handed to the dashboard to open the linking flow.
type LinkToken struct {
	LinkToken       string `json:"link_token"`
	IntegrationName string `json:"integration_name,omitempty"`
	MagicLinkURL    string `json:"magic_link_url,omitempty"`
}

// AccountToken is the result of exchanging a public token.
type AccountToken struct {
	AccountToken string        `json:"account_token"`
	Integration  IntegrationID `json:"integration"`
	ID           string        `json:"id"`
}

// IntegrationID identifies the upstream ATS vendor.
type IntegrationID struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Categories []string `json:"categories"`
}

// AccountDetails describes the linked account behind an account token.
type AccountDetails struct {
	ID                  string  `json:"id"`
	Integration         string  `json:"integration"`
	IntegrationSlug     string  `json:"integration_slug"`
	Category            string  `json:"category"`
	EndUserOriginID     string  `json:"end_user_origin_id"`
	EndUserOrgName      string  `json:"end_user_organization_name"`
	EndUserEmailAddress string  `json:"end_user_email_address"`
	Status              string  `json:"status"`
	WebhookListenerURL  string  `json:"webhook_listener_url"`
	IsDuplicate         *bool   `json:"is_duplicate"`
	AccountType         *string `json:"account_type"`
}

// CreateLinkToken creates a link token. Categories defaults to ATS.
func (c *Client) CreateLinkToken(ctx context.Context, req LinkTokenRequest) (*LinkToken, error) {
	if len(req.Categories) == 0 {
		req.Categories = []string{CategoryATS}
	}
	var out LinkToken
	if err := c.do(ctx, http.MethodPost, c.cfg.IntegrationsBaseURL, "/create-link-token", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangePublicToken swaps the one-time public token produced by the
// linking flow for a durable account token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*AccountToken, error) {
	var out AccountToken
	if err := c.get(ctx, "/account-token/"+url.PathEscape(publicToken), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountDetails describes the account c is bound to.
func (c *Client) GetAccountDetails(ctx context.Context) (*AccountDetails, error) {
	var out AccountDetails
	if err := c.get(ctx, "/account-details", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAccount unlinks the account c is bound to.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.cfg.BaseURL, "/delete-account", nil, nil, nil)
}
