package infrastructure

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateSchema applies the embedded SQL migrations to the database at dsn.
// It opens and closes its own connection.
func MigrateSchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	logger.Info("Running schema migrations...")
	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Schema migrations: already up-to-date")
	case err != nil:
		return fmt.Errorf("schema migrate up: %w", err)
	default:
		version, _, _ := migrator.Version()
		logger.Info("Schema migrations completed", zap.Uint("version", version))
	}
	return nil
}

// MigrateRiver creates or upgrades River's queue tables.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	logger.Info("Running River migration...")
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("River migration completed",
			zap.Int("versions_applied", len(res.Versions)),
		)
	} else {
		logger.Info("River migration: already up-to-date")
	}
	return nil
}
