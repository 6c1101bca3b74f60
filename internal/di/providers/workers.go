package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/mirrorapp/mirror-server/internal/config"
	"github.com/mirrorapp/mirror-server/internal/logger"
	"github.com/mirrorapp/mirror-server/internal/service"
)

// SchedulerHandle wraps the sync scheduler with Shutdownable.
type SchedulerHandle struct {
	*service.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.Scheduler.Shutdown()
	return nil
}

// ProvideScheduler provides the periodic sync scheduler, already started.
// An empty cache triggers an immediate full sync.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	syncService := do.MustInvoke[*service.SyncService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ready, err := storeHandle.CacheReady(context.Background())
	if err != nil {
		return nil, err
	}

	scheduler := service.NewScheduler(syncService, cfg.Sync, log.Logger)
	scheduler.Start(!ready)

	return &SchedulerHandle{Scheduler: scheduler}, nil
}
