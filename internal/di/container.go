// Package di provides dependency injection configuration for the mirror server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/mirrorapp/mirror-server/internal/config"
	"github.com/mirrorapp/mirror-server/internal/di/providers"
	"github.com/mirrorapp/mirror-server/internal/logger"
	"github.com/mirrorapp/mirror-server/internal/service"
	"github.com/mirrorapp/mirror-server/internal/upstream"
	"github.com/mirrorapp/mirror-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideValidator)

	// Upstream client
	do.Provide(injector, providers.ProvideUpstreamClient)

	// Business services
	do.Provide(injector, providers.ProvideSyncService)
	do.Provide(injector, providers.ProvideQueryService)
	do.Provide(injector, providers.ProvideOverlayService)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. This triggers lazy initialization in
// dependency order; the scheduler and HTTP server start as side effects.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*validation.Validator](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[upstream.Client](injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*service.SyncService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.QueryService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.OverlayService](injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*providers.SchedulerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
