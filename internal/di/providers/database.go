package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/mirrorapp/mirror-server/internal/config"
	"github.com/mirrorapp/mirror-server/internal/logger"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the local cache database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Database.DataPath, "mirror.db")
	}

	st, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	instanceID, err := st.InstanceID(context.Background())
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Info("Database opened", "path", dbPath, "instance_id", instanceID)

	return &StoreHandle{Store: st}, nil
}
