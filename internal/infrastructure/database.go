// Package infrastructure provides database and connection pool setup.
//
// One pgxpool is shared by the store and River so job inserts and record
// writes draw from the same connection budget.
//
// Import Path: hireguard.io/atssync/internal/infrastructure
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/pkg/logger"
)

// DatabaseClients contains all database-related clients.
type DatabaseClients struct {
	// Pool is the shared connection pool.
	Pool *pgxpool.Pool

	// RiverClient is nil until InitRiverClient runs, and stays nil when
	// River is disabled.
	RiverClient *river.Client[pgx.Tx]

	dsn string
}

// NewDatabaseClients creates the shared connection pool and verifies it.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	dsn := cfg.DSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", poolConfig.MaxConns),
		zap.Int32("min_conns", poolConfig.MinConns),
	)

	return &DatabaseClients{Pool: pool, dsn: dsn}, nil
}

// AutoMigrate applies the schema migrations and the River queue tables.
func (c *DatabaseClients) AutoMigrate(ctx context.Context) error {
	if err := MigrateSchema(ctx, c.dsn); err != nil {
		return err
	}
	return MigrateRiver(ctx, c.Pool)
}

// InitRiverClient creates a River client with registered workers.
// Called after NewDatabaseClients; workers come from bootstrap.
func (c *DatabaseClients) InitRiverClient(workers *river.Workers, cfg config.RiverConfig) error {
	riverClient, err := river.NewClient(riverpgxv5.New(c.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:                     workers,
		CompletedJobRetentionPeriod: cfg.CompletedJobRetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	c.RiverClient = riverClient
	logger.Info("River client initialized", zap.Int("max_workers", cfg.MaxWorkers))
	return nil
}

// Ping checks database reachability for readiness probes.
func (c *DatabaseClients) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (c *DatabaseClients) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
