package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mirrorapp/mirror-server/internal/config"
)

// Scheduler drives periodic syncs: incremental on a short interval, full
// on a long one. A full sync is also run at startup when the cache has
// never been populated.
type Scheduler struct {
	sync   *SyncService
	cfg    config.SyncConfig
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a sync scheduler.
func NewScheduler(syncService *SyncService, cfg config.SyncConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sync:   syncService,
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the scheduling loop. needInitial requests an immediate
// full sync before the timers begin, used when the cache is empty.
func (s *Scheduler) Start(needInitial bool) {
	if !s.cfg.Enabled {
		s.logger.Info("sync scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx, needInitial)
}

func (s *Scheduler) loop(ctx context.Context, needInitial bool) {
	defer s.wg.Done()

	if needInitial {
		s.logger.Info("cache empty, running initial full sync")
		if _, err := s.sync.RunFullSync(ctx); err != nil {
			s.logger.Error("initial full sync failed", "error", err)
		}
	}

	incremental := time.NewTicker(s.cfg.IncrementalInterval)
	full := time.NewTicker(s.cfg.FullInterval)
	defer incremental.Stop()
	defer full.Stop()

	s.logger.Info("sync scheduler started",
		"incremental_interval", s.cfg.IncrementalInterval,
		"full_interval", s.cfg.FullInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-full.C:
			if _, err := s.sync.RunFullSync(ctx); err != nil {
				s.logger.Error("scheduled full sync failed", "error", err)
			}
		case <-incremental.C:
			if _, err := s.sync.RunIncrementalSync(ctx); err != nil {
				s.logger.Error("scheduled incremental sync failed", "error", err)
			}
		}
	}
}

// Shutdown stops the loop and waits for any in-flight run to return.
func (s *Scheduler) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sync scheduler stopped")
}
