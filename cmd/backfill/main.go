// Package main runs a one-off backfill of an integration outside the server.
//
//	backfill -integration <id> [-since 2026-01-02T15:04:05Z] [-pool 8]
//
// The JSON report is written to stdout. River jobs are not enqueued: an
// application whose candidate is still missing stays deferred until the
// server's next sync of that candidate.
//
// Import Path: hireguard.io/atssync/cmd/backfill
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/app/modules"
	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/usecase"
)

type options struct {
	IntegrationID string
	Since         *time.Time
	PoolSize      int
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "backfill error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	integrationID := fs.String("integration", "", "integration id to backfill (required)")
	since := fs.String("since", "", "only records modified after this RFC3339 time")
	pool := fs.Int("pool", 0, "concurrent entity syncs (default worker.backfill_pool_size)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{IntegrationID: strings.TrimSpace(*integrationID), PoolSize: *pool}
	if opts.IntegrationID == "" {
		return options{}, errors.New("-integration is required")
	}
	if *pool < 0 {
		return options{}, fmt.Errorf("-pool must not be negative, got %d", *pool)
	}
	if *since != "" {
		t, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			return options{}, fmt.Errorf("parse -since: %w", err)
		}
		t = t.UTC()
		opts.Since = &t
	}
	return opts, nil
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
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if opts.PoolSize > 0 {
		cfg.Worker.BackfillPoolSize = opts.PoolSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init infrastructure: %w", err)
	}
	defer infra.Close()

	orch := modules.NewSyncModule(infra).Orchestrator()
	report, err := orch.Backfill(ctx, opts.IntegrationID, usecase.BackfillOptions{Since: opts.Since})
	if report != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			logger.Warn("Write backfill report failed", zap.Error(encErr))
		}
	}
	if err != nil {
		return fmt.Errorf("backfill %s: %w", opts.IntegrationID, err)
	}
	return nil
}
