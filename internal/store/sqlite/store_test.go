package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// markSynced records a completed full sync for every entity type so the
// cache counts as ready.
func markSynced(t *testing.T, s *Store) {
	t.Helper()
	for _, et := range domain.SyncOrder {
		if err := s.SetSyncState(context.Background(), et, time.Now(), true); err != nil {
			t.Fatalf("set sync state for %s: %v", et, err)
		}
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ent builds a sync entity for fixtures.
func ent(id string, scalars map[string]any, relations map[string][]string) store.SyncEntity {
	return store.SyncEntity{
		ID:        id,
		UpdatedAt: testNow,
		Scalars:   scalars,
		Relations: relations,
	}
}

// syncBatch runs one full-sync batch and fails the test on error.
func syncBatch(t *testing.T, s *Store, et domain.EntityType, entities []store.SyncEntity) store.SyncBatchResult {
	t.Helper()
	res, err := s.SyncEntityBatch(context.Background(), et, entities, true)
	if err != nil {
		t.Fatalf("sync %s: %v", et, err)
	}
	return res
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"tags", "studios", "performers", "galleries", "groups", "scenes", "images",
		"tag_relations", "gallery_performers", "gallery_tags", "group_tags",
		"scene_performers", "scene_tags", "scene_groups", "scene_galleries",
		"image_performers", "image_tags", "image_galleries",
		"user_ratings", "user_favorites", "user_views", "user_o_history", "user_exclusions",
		"sync_state", "sync_runs", "app_settings",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestCacheReady(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ready, err := s.CacheReady(ctx)
	if err != nil {
		t.Fatalf("cache ready: %v", err)
	}
	if ready {
		t.Error("fresh store should not be ready")
	}

	// One full-synced type is not enough.
	if err := s.SetSyncState(ctx, domain.EntityTag, time.Now(), true); err != nil {
		t.Fatalf("set sync state: %v", err)
	}
	ready, err = s.CacheReady(ctx)
	if err != nil {
		t.Fatalf("cache ready: %v", err)
	}
	if ready {
		t.Error("store should not be ready with one synced type")
	}

	markSynced(t, s)
	ready, err = s.CacheReady(ctx)
	if err != nil {
		t.Fatalf("cache ready: %v", err)
	}
	if !ready {
		t.Error("store should be ready after all types full-synced")
	}
}

func TestCacheNotReadyQueryFails(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QueryScenes(context.Background(), &store.QuerySpec{})
	if err == nil {
		t.Fatal("expected error querying unready cache")
	}
	if !errors.Is(err, store.ErrCacheNotReady) {
		t.Errorf("expected ErrCacheNotReady, got %v", err)
	}
}

func TestInstanceID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.InstanceID(ctx)
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty instance id")
	}
	second, err := s.InstanceID(ctx)
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	if first != second {
		t.Errorf("instance id changed: %s vs %s", first, second)
	}
}

func TestSyncStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	states, err := s.GetSyncStates(ctx)
	if err != nil {
		t.Fatalf("get sync states: %v", err)
	}
	if len(states) != len(domain.SyncOrder) {
		t.Fatalf("expected %d states, got %d", len(domain.SyncOrder), len(states))
	}
	for _, st := range states {
		if st.LastSyncedAt != nil {
			t.Errorf("%s: expected no last sync on fresh store", st.EntityType)
		}
	}

	when := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := s.SetSyncState(ctx, domain.EntityScene, when, false); err != nil {
		t.Fatalf("set incremental state: %v", err)
	}

	states, err = s.GetSyncStates(ctx)
	if err != nil {
		t.Fatalf("get sync states: %v", err)
	}
	for _, st := range states {
		if st.EntityType != domain.EntityScene {
			continue
		}
		if st.LastSyncedAt == nil || !st.LastSyncedAt.Equal(when) {
			t.Errorf("expected last synced %v, got %v", when, st.LastSyncedAt)
		}
		if st.LastFullSyncedAt != nil {
			t.Error("incremental sync must not set last full sync")
		}
	}
}
