package providers

import (
	"github.com/samber/do/v2"

	"github.com/mirrorapp/mirror-server/internal/config"
	"github.com/mirrorapp/mirror-server/internal/logger"
	"github.com/mirrorapp/mirror-server/internal/service"
	"github.com/mirrorapp/mirror-server/internal/upstream"
	"github.com/mirrorapp/mirror-server/internal/validation"
)

// ProvideUpstreamClient provides the rate-limited upstream catalog client.
func ProvideUpstreamClient(i do.Injector) (upstream.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return upstream.New(upstream.Options{
		BaseURL:           cfg.Upstream.BaseURL,
		APIKey:            cfg.Upstream.APIKey,
		Timeout:           cfg.Upstream.Timeout,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		PageSize:          cfg.Upstream.PageSize,
	}, log.Logger), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideSyncService provides the sync engine.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	client := do.MustInvoke[upstream.Client](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSyncService(storeHandle.Store, client, log.Logger), nil
}

// ProvideQueryService provides the query engine front end.
func ProvideQueryService(i do.Injector) (*service.QueryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validate := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewQueryService(storeHandle.Store, validate, log.Logger, cfg.Server.QueryTimeout), nil
}

// ProvideOverlayService provides the per-user overlay writer.
func ProvideOverlayService(i do.Injector) (*service.OverlayService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewOverlayService(storeHandle.Store, log.Logger), nil
}
