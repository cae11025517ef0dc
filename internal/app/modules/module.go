// Package modules contains the dependency modules wired by the composition
// root.
//
// Import Path: hireguard.io/atssync/internal/app/modules
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"hireguard.io/atssync/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP
	// server deps. It runs after RegisterWorkers and River initialization.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}
