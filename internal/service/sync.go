// Package service contains the application services wiring the upstream
// client, the local cache, and the query engine together.
package service

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	domainerrors "github.com/mirrorapp/mirror-server/internal/errors"
	"github.com/mirrorapp/mirror-server/internal/id"
	"github.com/mirrorapp/mirror-server/internal/store"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
	"github.com/mirrorapp/mirror-server/internal/upstream"
)

// SyncService orchestrates full and incremental mirroring of the upstream
// catalog into the local cache, in dependency order, with the inheritance
// and counter passes run synchronously afterwards so the cache is
// internally consistent before readers see the new state.
type SyncService struct {
	store  *sqlite.Store
	client upstream.Client
	logger *slog.Logger

	// runMu serializes sync runs; a trigger while one is in flight is
	// rejected rather than queued.
	runMu sync.Mutex

	stateMu    sync.Mutex
	running    bool
	lastReport *domain.SyncReport
}

// NewSyncService creates a new sync service.
func NewSyncService(st *sqlite.Store, client upstream.Client, logger *slog.Logger) *SyncService {
	return &SyncService{
		store:  st,
		client: client,
		logger: logger,
	}
}

// RunFullSync mirrors the complete upstream catalog: every entity type in
// dependency order, soft-deleting records absent upstream. Blocks until
// the run, including post-sync passes, finishes.
func (s *SyncService) RunFullSync(ctx context.Context) (*domain.SyncReport, error) {
	return s.run(ctx, domain.SyncFull)
}

// RunIncrementalSync mirrors only records changed since each type's last
// completed sync. Deletions cannot be detected incrementally; the periodic
// full sync reconciles those.
func (s *SyncService) RunIncrementalSync(ctx context.Context) (*domain.SyncReport, error) {
	return s.run(ctx, domain.SyncIncremental)
}

func (s *SyncService) run(ctx context.Context, kind domain.SyncKind) (*domain.SyncReport, error) {
	if !s.runMu.TryLock() {
		return nil, domainerrors.Conflict("a sync is already running")
	}
	defer s.runMu.Unlock()
	return s.runLocked(ctx, kind)
}

// runLocked is the run body; the caller holds runMu.
func (s *SyncService) runLocked(ctx context.Context, kind domain.SyncKind) (*domain.SyncReport, error) {
	s.setRunning(true)
	defer s.setRunning(false)

	report := &domain.SyncReport{
		ID:        id.MustGenerate("sync"),
		Kind:      kind,
		StartedAt: time.Now(),
	}

	states, err := s.store.GetSyncStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	lastSynced := make(map[domain.EntityType]*time.Time, len(states))
	for _, st := range states {
		lastSynced[st.EntityType] = st.LastSyncedAt
	}

	junctionsChanged := false
	containersTouched := false
	var failedTypes []domain.EntityType

	for _, entityType := range domain.SyncOrder {
		typeReport, rewrote := s.syncType(ctx, kind, entityType, lastSynced[entityType])
		report.Types = append(report.Types, typeReport)
		if typeReport.Error != "" {
			failedTypes = append(failedTypes, entityType)
			continue
		}
		if rewrote {
			junctionsChanged = true
			// Container junctions feed inheritance, so a rewrite of either
			// container type means the pass must run again.
			if entityType == domain.EntityGallery || entityType == domain.EntityImage {
				containersTouched = true
			}
		}
	}

	// Types whose junctions were rewritten while a dependency was failing
	// may have lost rows to the missing-target guard. Flag their owners so
	// the next full sync rewrites relations for every entity, not just the
	// changed ones.
	if len(failedTypes) > 0 {
		if err := s.store.MarkRelationsStale(ctx, failedTypes); err != nil {
			s.logger.Error("mark stale relations", "error", err)
		}
	}

	// Post-sync hooks run synchronously so readers never observe a synced
	// but unprocessed cache.
	if containersTouched {
		if err := s.store.ApplyContainerInheritance(ctx); err != nil {
			s.logger.Error("container inheritance failed", "error", err)
		}
	}
	if junctionsChanged {
		if err := s.store.RebuildCounters(ctx, nil); err != nil {
			s.logger.Error("counter rebuild failed", "error", err)
		}
	}

	report.FinishedAt = time.Now()
	s.recordRun(ctx, report)

	created, updated, deleted := report.Totals()
	s.logger.Info("sync finished",
		"kind", kind,
		"created", created,
		"updated", updated,
		"soft_deleted", deleted,
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// syncType runs one entity type's step. A fetch failure aborts only this
// type; the rest of the run proceeds.
func (s *SyncService) syncType(ctx context.Context, kind domain.SyncKind, entityType domain.EntityType, since *time.Time) (domain.TypeSyncReport, bool) {
	typeReport := domain.TypeSyncReport{EntityType: entityType}

	full := kind == domain.SyncFull
	var raw []upstream.RawEntity
	var err error
	if full || since == nil {
		// A type never synced incrementally falls back to a full fetch,
		// but absence still only proves deletion on a true full sync.
		raw, err = s.client.FetchAll(ctx, entityType)
	} else {
		raw, err = s.client.FetchChangedSince(ctx, entityType, *since)
	}
	if err != nil {
		s.logger.Error("fetch failed", "entity_type", entityType, "error", err)
		typeReport.Error = err.Error()
		return typeReport, false
	}

	entities := make([]store.SyncEntity, 0, len(raw))
	for _, r := range raw {
		e, err := transformEntity(entityType, r)
		if err != nil {
			s.logger.Warn("skipping malformed upstream record",
				"entity_type", entityType, "id", r.ID, "error", err)
			typeReport.Skipped++
			continue
		}
		entities = append(entities, e)
	}

	result, err := s.store.SyncEntityBatch(ctx, entityType, entities, full)
	if err != nil {
		s.logger.Error("sync batch failed", "entity_type", entityType, "error", err)
		typeReport.Error = err.Error()
		return typeReport, false
	}

	if err := s.store.SetSyncState(ctx, entityType, time.Now(), full); err != nil {
		typeReport.Error = err.Error()
		return typeReport, result.JunctionsChanged
	}

	typeReport.Created = result.Created
	typeReport.Updated = result.Updated
	typeReport.SoftDeleted = result.SoftDeleted
	return typeReport, result.JunctionsChanged
}

func (s *SyncService) setRunning(v bool) {
	s.stateMu.Lock()
	s.running = v
	s.stateMu.Unlock()
}

func (s *SyncService) recordRun(ctx context.Context, report *domain.SyncReport) {
	s.stateMu.Lock()
	s.lastReport = report
	s.stateMu.Unlock()

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("marshal sync report", "error", err)
		return
	}
	if err := s.store.RecordSyncRun(ctx, report.ID, report.Kind, report.StartedAt, report.FinishedAt, string(payload)); err != nil {
		s.logger.Error("record sync run", "error", err)
	}
}

// TriggerFullSync starts a full sync in the background. Conflict error
// when one is already running.
func (s *SyncService) TriggerFullSync() error {
	return s.trigger(domain.SyncFull)
}

// TriggerIncrementalSync starts an incremental sync in the background.
func (s *SyncService) TriggerIncrementalSync() error {
	return s.trigger(domain.SyncIncremental)
}

func (s *SyncService) trigger(kind domain.SyncKind) error {
	// Acquire the run lock here, not in the goroutine, so concurrent
	// triggers see the conflict instead of both reporting success.
	if !s.runMu.TryLock() {
		return domainerrors.Conflict("a sync is already running")
	}

	go func() {
		// Detached from the request; a trigger outlives its caller.
		defer s.runMu.Unlock()
		if _, err := s.runLocked(context.Background(), kind); err != nil {
			s.logger.Error("triggered sync failed", "kind", kind, "error", err)
		}
	}()
	return nil
}

// Status reports whether a sync is in flight and the last finished run.
func (s *SyncService) Status(ctx context.Context) (*domain.SyncStatus, error) {
	s.stateMu.Lock()
	running := s.running
	last := s.lastReport
	s.stateMu.Unlock()

	status := &domain.SyncStatus{State: domain.SyncIdle}
	if running {
		status.State = domain.SyncRunning
	}

	if last == nil {
		// Recover the last run across restarts.
		finishedAt, payload, err := s.store.LastSyncRun(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return status, nil
		case err != nil:
			return nil, err
		}
		var report domain.SyncReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decode stored sync report: %w", err)
		}
		report.FinishedAt = finishedAt
		last = &report
	}

	status.LastRun = &last.FinishedAt
	status.LastReport = last
	return status, nil
}

// States returns the per-type sync bookkeeping.
func (s *SyncService) States(ctx context.Context) ([]domain.SyncState, error) {
	return s.store.GetSyncStates(ctx)
}
