// Package main mints API bearer tokens for service callers and operators.
//
//	token -subject dashboard -org org-1 -scopes integrations:read,integrations:write
//
// The token is signed with security.jwt_signing_key and printed to stdout.
//
// Import Path: hireguard.io/atssync/cmd/token
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"hireguard.io/atssync/internal/api/middleware"
	"hireguard.io/atssync/internal/app/modules"
	"hireguard.io/atssync/internal/config"
)

type options struct {
	Subject        string
	OrganizationID string
	Scopes         []string
	TTL            time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "token error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "", "token subject (required)")
	org := fs.String("org", "", "organization id the caller acts for")
	scopes := fs.String("scopes", "", "comma-separated scopes (required)")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		Subject:        strings.TrimSpace(*subject),
		OrganizationID: strings.TrimSpace(*org),
		TTL:            *ttl,
	}
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.Scopes = append(opts.Scopes, s)
		}
	}

	switch {
	case opts.Subject == "":
		return options{}, errors.New("-subject is required")
	case len(opts.Scopes) == 0:
		return options{}, errors.New("-scopes is required")
	case opts.TTL <= 0:
		return options{}, fmt.Errorf("-ttl must be positive, got %s", opts.TTL)
	case opts.OrganizationID == "" && !hasAdmin(opts.Scopes):
		return options{}, fmt.Errorf("-org is required unless scopes include %s", middleware.ScopeAdmin)
	}
	return opts, nil
}

func hasAdmin(scopes []string) bool {
	for _, s := range scopes {
		if s == middleware.ScopeAdmin {
			return true
		}
	}
	return false
}

func mint(sec config.SecurityConfig, opts options) (string, time.Time, error) {
	cfg := modules.NewJWTConfig(sec)
	cfg.ExpiresIn = opts.TTL
	return middleware.GenerateToken(cfg, opts.Subject, opts.OrganizationID, opts.Scopes)
}

func run(args []string, out io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tok, expiresAt, err := mint(cfg.Security, opts)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(out, tok)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
