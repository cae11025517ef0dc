// Package provider is the anti-corruption layer in front of the upstream ATS
// aggregation API. It exposes typed, paginated reads of ATS resources and the
// account-linking lifecycle; nothing outside this package speaks the wire
// format.
//
// Import Path: hireguard.io/atssync/internal/provider
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/pkg/logger"
)

const (
	DefaultBaseURL             = "https://api.merge.dev/api/ats/v1"
	DefaultIntegrationsBaseURL = "https://api.merge.dev/api/integrations"
	DefaultTimeout             = 15 * time.Second
	DefaultPageSize            = 100

	headerAccountToken = "X-Account-Token"
)

// ClientConfig holds the connection settings. It is built from config at
// startup and passed in; the client never reads the environment.
type ClientConfig struct {
	BaseURL             string
	IntegrationsBaseURL string
	APIKey              string
	// Timeout bounds every request, including reading the response body.
	Timeout  time.Duration
	PageSize int
	// HTTPClient overrides the owned client. Its Timeout is replaced by
	// Timeout when that is set.
	HTTPClient *http.Client
}

// Client is a stateless ATS API client, safe for concurrent use. A Client
// without an account token can only call account-lifecycle endpoints and
// the token exchange.
type Client struct {
	cfg          ClientConfig
	http         *http.Client
	accountToken string
}

// NewClient creates a Client, applying defaults to empty settings.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.IntegrationsBaseURL == "" {
		cfg.IntegrationsBaseURL = DefaultIntegrationsBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = DefaultPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.IntegrationsBaseURL = strings.TrimRight(cfg.IntegrationsBaseURL, "/")

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	hc.Timeout = cfg.Timeout

	return &Client{cfg: cfg, http: hc}
}

// ForAccount returns a copy of c that authenticates as the linked account
// identified by accountToken.
func (c *Client) ForAccount(accountToken string) *Client {
	cp := *c
	cp.accountToken = accountToken
	return &cp
}

// PageSize is the configured default page size.
func (c *Client) PageSize() int {
	return c.cfg.PageSize
}

// do performs one request. out may be nil. Non-2xx responses become
// *APIError with the (truncated) raw body.
func (c *Client) do(ctx context.Context, method, base, path string, query url.Values, body, out any) error {
	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accountToken != "" {
		req.Header.Set(headerAccountToken, c.accountToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("ATS API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("ats api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	logger.Debug("ATS API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Method:     method,
			Path:       path,
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, c.cfg.BaseURL, path, query, nil, out)
}
