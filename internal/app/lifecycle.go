package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hireguard.io/atssync/internal/pkg/logger"
)

// Start starts background services. River begins consuming re-sync and
// backfill jobs here.
func (a *Application) Start(ctx context.Context) error {
	if a.Infra != nil && a.Infra.RiverClient != nil {
		if err := a.Infra.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}
	return nil
}

// Shutdown gracefully shuts down all application components.
func (a *Application) Shutdown(ctx context.Context) {
	if a.Infra != nil && a.Infra.RiverClient != nil {
		if err := a.Infra.RiverClient.Stop(ctx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
		logger.Info("River client stopped")
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			logger.Warn("module shutdown returned error",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	a.Infra.Close()
}
