package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mirrorapp/mirror-server/internal/domain"
	domainerrors "github.com/mirrorapp/mirror-server/internal/errors"
	"github.com/mirrorapp/mirror-server/internal/store"
	"github.com/mirrorapp/mirror-server/internal/store/sqlite"
	"github.com/mirrorapp/mirror-server/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func raw(id, name string, updatedAt time.Time) upstream.RawEntity {
	return upstream.RawEntity{ID: id, Name: name, Title: name, UpdatedAt: updatedAt}
}

// seedFake fills the fake with a small but fully connected catalog.
func seedFake(f *upstream.FakeClient) {
	f.Set(domain.EntityTag,
		raw("tag-1", "Action", baseTime),
		raw("tag-2", "Drama", baseTime),
	)
	f.Set(domain.EntityStudio, raw("studio-1", "Acme", baseTime))
	f.Set(domain.EntityPerformer, raw("perf-1", "Ann", baseTime))

	gal := raw("gal-1", "Gallery One", baseTime)
	gal.PerformerIDs = []string{"perf-1"}
	gal.TagIDs = []string{"tag-1"}
	f.Set(domain.EntityGallery, gal)

	f.Set(domain.EntityGroup, raw("grp-1", "Group One", baseTime))

	sc := raw("scene-1", "Scene One", baseTime)
	sc.PerformerIDs = []string{"perf-1"}
	sc.TagIDs = []string{"tag-1", "tag-2"}
	sc.GalleryIDs = []string{"gal-1"}
	f.Set(domain.EntityScene, sc)

	img := raw("img-1", "Image One", baseTime)
	img.GalleryIDs = []string{"gal-1"}
	f.Set(domain.EntityImage, img)
}

func TestFullSyncDependencyOrder(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	svc := NewSyncService(st, fake, testLogger())
	report, err := svc.RunFullSync(context.Background())
	if err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected clean run, got %+v", report.Types)
	}

	want := []string{
		"all:tag", "all:studio", "all:performer",
		"all:gallery", "all:group", "all:scene", "all:image",
	}
	if len(fake.Calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.Calls, want)
	}
	for i, call := range want {
		if fake.Calls[i] != call {
			t.Errorf("call %d = %q, want %q", i, fake.Calls[i], call)
		}
	}

	created, updated, deleted := report.Totals()
	if created != 8 || updated != 0 || deleted != 0 {
		t.Errorf("totals = %d/%d/%d, want 8/0/0", created, updated, deleted)
	}

	ready, err := st.CacheReady(context.Background())
	if err != nil || !ready {
		t.Fatalf("cache ready = %v, %v; want true", ready, err)
	}
}

func TestFullSyncPerTypeFailureIsolation(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)
	fake.Err[domain.EntityPerformer] = errors.New("upstream 502")

	svc := NewSyncService(st, fake, testLogger())
	report, err := svc.RunFullSync(context.Background())
	if err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}
	if !report.Failed() {
		t.Fatal("expected a failed type step")
	}

	for _, tr := range report.Types {
		switch tr.EntityType {
		case domain.EntityPerformer:
			if tr.Error == "" {
				t.Error("performer step should carry the fetch error")
			}
		default:
			if tr.Error != "" {
				t.Errorf("%s step failed unexpectedly: %s", tr.EntityType, tr.Error)
			}
		}
	}

	// Scenes still synced despite the performer failure.
	scenes, err := st.GetScenesByIDs(context.Background(), []string{"scene-1"}, "", domain.RoleAdmin)
	if err != nil || len(scenes) != 1 {
		t.Fatalf("scenes = %v, %v; want scene-1 present", scenes, err)
	}
}

func TestFullSyncRecoversRelationsAfterDependencyFailure(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)
	fake.Err[domain.EntityPerformer] = errors.New("upstream 502")

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// With the performer table empty, the scene synced without its
	// performer link.
	scenes, err := st.GetScenesByIDs(context.Background(), []string{"scene-1"}, "", domain.RoleAdmin)
	if err != nil || len(scenes) != 1 {
		t.Fatalf("scenes = %v, %v", scenes, err)
	}
	if len(scenes[0].Performers) != 0 {
		t.Fatalf("performers = %v, want none while the dependency is down", scenes[0].Performers)
	}

	// The dependency recovers; the scene itself is unchanged upstream, so
	// only a forced relation rewrite can restore the link.
	delete(fake.Err, domain.EntityPerformer)
	report, err := svc.RunFullSync(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if report.Failed() {
		t.Fatalf("expected clean recovery run, got %+v", report.Types)
	}

	scenes, err = st.GetScenesByIDs(context.Background(), []string{"scene-1"}, "", domain.RoleAdmin)
	if err != nil || len(scenes) != 1 {
		t.Fatalf("scenes = %v, %v", scenes, err)
	}
	if len(scenes[0].Performers) != 1 || scenes[0].Performers[0].ID != "perf-1" {
		t.Errorf("performers = %v, want perf-1 restored after recovery", scenes[0].Performers)
	}

	// The gallery's performer link converged too, and the rebuilt counters
	// reflect the restored junctions.
	perfs, err := st.GetPerformersByIDs(context.Background(), []string{"perf-1"}, "", domain.RoleAdmin)
	if err != nil || len(perfs) != 1 {
		t.Fatalf("performers = %v, %v", perfs, err)
	}
	if perfs[0].SceneCount != 1 || perfs[0].GalleryCount != 1 {
		t.Errorf("perf-1 counts = %d/%d, want 1/1", perfs[0].SceneCount, perfs[0].GalleryCount)
	}

	// Inheritance re-ran over the restored gallery links, so the bare
	// image picked up the gallery's performer.
	imgs, err := st.GetImagesByIDs(context.Background(), []string{"img-1"}, "", domain.RoleAdmin)
	if err != nil || len(imgs) != 1 {
		t.Fatalf("images = %v, %v", imgs, err)
	}
	if len(imgs[0].Performers) != 1 || imgs[0].Performers[0].ID != "perf-1" {
		t.Errorf("image performers = %v, want inherited perf-1", imgs[0].Performers)
	}
}

// gateClient blocks every fetch until released, to hold a sync in flight.
type gateClient struct {
	upstream.Client
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *gateClient) FetchAll(ctx context.Context, t domain.EntityType) ([]upstream.RawEntity, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return c.Client.FetchAll(ctx, t)
}

func TestTriggerConflictsWhileRunInFlight(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)
	gate := &gateClient{
		Client:  fake,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	svc := NewSyncService(st, gate, testLogger())
	if err := svc.TriggerFullSync(); err != nil {
		t.Fatalf("first trigger: %v", err)
	}

	// The second trigger must conflict even before the background run has
	// begun fetching.
	if err := svc.TriggerIncrementalSync(); !isCode(err, domainerrors.CodeConflict) {
		t.Errorf("second trigger err = %v, want conflict", err)
	}

	<-gate.started
	if err := svc.TriggerFullSync(); !isCode(err, domainerrors.CodeConflict) {
		t.Errorf("mid-run trigger err = %v, want conflict", err)
	}
	close(gate.release)

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := svc.Status(context.Background())
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.State == domain.SyncIdle && status.LastReport != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("triggered sync did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIncrementalSyncFetchesChangedOnly(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	fake.Calls = nil
	fake.Set(domain.EntityTag,
		raw("tag-1", "Action", baseTime),
		raw("tag-2", "Drama Renamed", baseTime.Add(time.Hour)),
	)

	report, err := svc.RunIncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("RunIncrementalSync: %v", err)
	}
	for _, call := range fake.Calls {
		if call[:8] != "changed:" {
			t.Errorf("incremental run issued %q", call)
		}
	}

	_, updated, deleted := report.Totals()
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	if deleted != 0 {
		t.Errorf("incremental run soft-deleted %d entities", deleted)
	}
}

func TestFullSyncSoftDeletesAbsentees(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	fake.Set(domain.EntityTag, raw("tag-1", "Action", baseTime))
	report, err := svc.RunFullSync(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	_, _, deleted := report.Totals()
	if deleted != 1 {
		t.Errorf("soft deleted = %d, want 1 (tag-2)", deleted)
	}

	tags, err := st.GetTagsByIDs(context.Background(), []string{"tag-2"}, "", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("GetTagsByIDs: %v", err)
	}
	if len(tags) != 0 {
		t.Error("soft-deleted tag still hydrates")
	}
}

func TestSyncRunsInheritanceAfterwards(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	// Give the gallery a date the bare image should inherit.
	gal := raw("gal-1", "Gallery One", baseTime)
	gal.Date = "2024-06-15"
	gal.PerformerIDs = []string{"perf-1"}
	gal.TagIDs = []string{"tag-1"}
	fake.Set(domain.EntityGallery, gal)

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	imgs, err := st.GetImagesByIDs(context.Background(), []string{"img-1"}, "", domain.RoleAdmin)
	if err != nil || len(imgs) != 1 {
		t.Fatalf("images = %v, %v", imgs, err)
	}
	if imgs[0].Date != "2024-06-15" {
		t.Errorf("image date = %q, want inherited 2024-06-15", imgs[0].Date)
	}
	if len(imgs[0].Performers) != 1 || imgs[0].Performers[0].ID != "perf-1" {
		t.Errorf("image performers = %v, want inherited perf-1", imgs[0].Performers)
	}
}

func TestSyncRebuildsCounters(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	perfs, err := st.GetPerformersByIDs(context.Background(), []string{"perf-1"}, "", domain.RoleAdmin)
	if err != nil || len(perfs) != 1 {
		t.Fatalf("performers = %v, %v", perfs, err)
	}
	if perfs[0].SceneCount != 1 {
		t.Errorf("perf-1 scene count = %d, want 1", perfs[0].SceneCount)
	}
	if perfs[0].GalleryCount != 1 {
		t.Errorf("perf-1 gallery count = %d, want 1", perfs[0].GalleryCount)
	}
}

func TestSyncSkipsMalformedRecords(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)
	fake.Set(domain.EntityTag,
		raw("tag-1", "Action", baseTime),
		upstream.RawEntity{Name: "no id", UpdatedAt: baseTime},
		upstream.RawEntity{ID: "tag-3", Name: "no timestamp"},
	)

	svc := NewSyncService(st, fake, testLogger())
	report, err := svc.RunFullSync(context.Background())
	if err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	var tagReport domain.TypeSyncReport
	for _, tr := range report.Types {
		if tr.EntityType == domain.EntityTag {
			tagReport = tr
		}
	}
	if tagReport.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", tagReport.Skipped)
	}
	if tagReport.Created != 1 {
		t.Errorf("created = %d, want 1", tagReport.Created)
	}
	if tagReport.Error != "" {
		t.Errorf("malformed records should not fail the step: %s", tagReport.Error)
	}
}

func TestSyncRecordsRunAndStatus(t *testing.T) {
	st := newTestStore(t)
	fake := upstream.NewFakeClient()
	seedFake(fake)

	svc := NewSyncService(st, fake, testLogger())
	if _, err := svc.RunFullSync(context.Background()); err != nil {
		t.Fatalf("RunFullSync: %v", err)
	}

	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != domain.SyncIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
	if status.LastReport == nil || status.LastReport.Kind != domain.SyncFull {
		t.Fatalf("last report = %+v, want recorded full run", status.LastReport)
	}

	// A fresh service recovers the last run from the database.
	svc2 := NewSyncService(st, fake, testLogger())
	status2, err := svc2.Status(context.Background())
	if err != nil {
		t.Fatalf("Status (fresh service): %v", err)
	}
	if status2.LastReport == nil || status2.LastReport.Kind != domain.SyncFull {
		t.Errorf("fresh service did not recover the stored run")
	}
}

func TestTransformEntityNormalizesSortKeys(t *testing.T) {
	e, err := transformEntity(domain.EntityScene, upstream.RawEntity{
		ID:        "scene-1",
		Title:     "Éclat  Noir",
		UpdatedAt: baseTime,
	})
	if err != nil {
		t.Fatalf("transformEntity: %v", err)
	}
	if e.Scalars["title_sort"] != "eclat noir" {
		t.Errorf("title_sort = %v, want %q", e.Scalars["title_sort"], "eclat noir")
	}
	if e.Scalars["title"] != "Éclat  Noir" {
		t.Errorf("title = %v, display value must be untouched", e.Scalars["title"])
	}
}

func TestTransformEntityDropsInvalidDates(t *testing.T) {
	e, err := transformEntity(domain.EntityScene, upstream.RawEntity{
		ID:        "scene-1",
		Title:     "x",
		Date:      "June 2024",
		UpdatedAt: baseTime,
	})
	if err != nil {
		t.Fatalf("transformEntity: %v", err)
	}
	if e.Scalars["date"] != nil {
		t.Errorf("date = %v, want nil for unparseable input", e.Scalars["date"])
	}
}

func TestQueryBeforeFirstSyncFails(t *testing.T) {
	st := newTestStore(t)
	_, err := st.QueryScenes(context.Background(), &store.QuerySpec{Page: 1, PerPage: 10, Role: domain.RoleAdmin})
	if !errors.Is(err, store.ErrCacheNotReady) {
		t.Fatalf("err = %v, want ErrCacheNotReady", err)
	}
}
