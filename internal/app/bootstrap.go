// Package app is the composition root; bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"hireguard.io/atssync/internal/api/handlers"
	"hireguard.io/atssync/internal/app/modules"
	"hireguard.io/atssync/internal/config"
	"hireguard.io/atssync/internal/pkg/logger"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	Sync    *modules.SyncModule
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	syncModule := modules.NewSyncModule(infra)
	allModules := []modules.Module{
		syncModule,
		modules.NewIntegrationsModule(infra),
	}

	if cfg.River.Enabled {
		workers := river.NewWorkers()
		for _, mod := range allModules {
			mod.RegisterWorkers(workers)
		}
		if err := infra.InitRiver(workers); err != nil {
			infra.Close()
			return nil, fmt.Errorf("init river workers: %w", err)
		}
	} else {
		logger.Warn("River disabled; deferred applications wait for their candidate and backfills run inline")
	}

	serverDeps := modules.NewServerDeps(cfg, infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, modules.NewJWTConfig(cfg.Security)),
		Infra:   infra,
		Sync:    syncModule,
		Modules: allModules,
	}, nil
}
