package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"hireguard.io/atssync/internal/compliance"
	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/governance/audit"
	"hireguard.io/atssync/internal/infrastructure"
	"hireguard.io/atssync/internal/pkg/logger"
	"hireguard.io/atssync/internal/pkg/secretbox"
	"hireguard.io/atssync/internal/pkg/worker"
	"hireguard.io/atssync/internal/provider"
	"hireguard.io/atssync/internal/repository"
)

// poolReleaseTimeout bounds how long shutdown waits for in-flight backfill
// tasks.
const poolReleaseTimeout = 30 * time.Second

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Store       *repository.PostgresStore
	AuditLogger *audit.Logger
	Provider    *provider.Client
	Catalog     *compliance.Catalog
	Engine      *compliance.Engine
	Pool        *worker.Pool
	RiverClient *river.Client[pgx.Tx]
}

// NewInfrastructure initializes the database, the store and shared services.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	catalog, err := loadCatalog(cfg.Compliance)
	if err != nil {
		return nil, err
	}

	box, err := secretbox.New(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("init secretbox: %w", err)
	}

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: apply the schema and River's queue tables on boot.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pool, err := worker.NewPool("backfill", cfg.Worker.BackfillPoolSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init backfill pool: %w", err)
	}

	store := repository.NewPostgresStore(db.Pool, box)
	return &Infrastructure{
		Config:      cfg,
		DB:          db,
		Store:       store,
		AuditLogger: audit.NewLogger(store),
		Provider:    NewProviderClient(cfg.Merge),
		Catalog:     catalog,
		Engine:      compliance.NewEngine(catalog),
		Pool:        pool,
	}, nil
}

// NewProviderClient builds the upstream ATS client from config.
func NewProviderClient(cfg config.MergeConfig) *provider.Client {
	return provider.NewClient(provider.ClientConfig{
		BaseURL:             cfg.BaseURL,
		IntegrationsBaseURL: cfg.IntegrationsBaseURL,
		APIKey:              cfg.APIKey,
		Timeout:             cfg.RequestTimeout,
		PageSize:            cfg.PageSize,
	})
}

func loadCatalog(cfg config.ComplianceConfig) (*compliance.Catalog, error) {
	if cfg.CatalogPath == "" {
		catalog, err := compliance.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("load built-in jurisdiction catalog: %w", err)
		}
		return catalog, nil
	}
	catalog, err := compliance.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load jurisdiction catalog %s: %w", cfg.CatalogPath, err)
	}
	logger.Info("Jurisdiction catalog loaded", zap.String("path", cfg.CatalogPath))
	return catalog, nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. With River disabled the client stays nil.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pool != nil {
		i.Pool.Release(poolReleaseTimeout)
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
