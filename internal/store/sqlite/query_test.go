package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// seedCatalog loads a small but fully-related fixture set and marks the
// cache ready.
func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	syncBatch(t, s, domain.EntityTag, []store.SyncEntity{
		ent("tag-a", map[string]any{"name": "Parent", "name_sort": "parent"}, nil),
		ent("tag-b", map[string]any{"name": "Child", "name_sort": "child"},
			map[string][]string{"parents": {"tag-a"}}),
		ent("tag-c", map[string]any{"name": "Other", "name_sort": "other"}, nil),
	})
	syncBatch(t, s, domain.EntityStudio, []store.SyncEntity{
		ent("studio-1", map[string]any{"name": "Studio One", "name_sort": "studio one"}, nil),
		ent("studio-2", map[string]any{"name": "Studio Two", "name_sort": "studio two"}, nil),
	})
	syncBatch(t, s, domain.EntityPerformer, []store.SyncEntity{
		ent("perf-1", map[string]any{"name": "Ann", "name_sort": "ann"}, nil),
		ent("perf-2", map[string]any{"name": "Bob", "name_sort": "bob"}, nil),
	})
	syncBatch(t, s, domain.EntityGallery, []store.SyncEntity{
		ent("gal-1", map[string]any{"title": "Gallery One", "title_sort": "gallery one", "studio_id": "studio-1"},
			map[string][]string{"tags": {"tag-b"}, "performers": {"perf-1"}}),
	})
	syncBatch(t, s, domain.EntityGroup, []store.SyncEntity{
		ent("grp-1", map[string]any{"name": "Group One", "name_sort": "group one"}, nil),
	})
	syncBatch(t, s, domain.EntityScene, []store.SyncEntity{
		ent("scene-1", map[string]any{
			"title": "Alpha", "title_sort": "alpha", "date": "2026-01-01",
			"duration_sec": int64(100), "studio_id": "studio-1",
		}, map[string][]string{
			"performers": {"perf-1"}, "tags": {"tag-b"},
			"groups": {"grp-1"}, "galleries": {"gal-1"},
		}),
		ent("scene-2", map[string]any{
			"title": "beta", "title_sort": "beta", "date": "2026-02-01",
			"duration_sec": int64(200), "studio_id": "studio-2",
		}, map[string][]string{"performers": {"perf-2"}, "tags": {"tag-c"}}),
		ent("scene-3", map[string]any{"title": "Gamma", "title_sort": "gamma"}, nil),
	})
	syncBatch(t, s, domain.EntityImage, []store.SyncEntity{
		ent("img-1", map[string]any{"title": "Image One", "title_sort": "image one"},
			map[string][]string{"galleries": {"gal-1"}}),
	})

	if err := s.RebuildCounters(ctx, nil); err != nil {
		t.Fatalf("rebuild counters: %v", err)
	}
	markSynced(t, s)
}

func sceneIDs(result *store.PagedResult[*domain.Scene]) []string {
	out := make([]string, len(result.Items))
	for i, sc := range result.Items {
		out[i] = sc.ID
	}
	return out
}

func assertIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestQueryScenesDefaultSort(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	res, err := s.QueryScenes(context.Background(), &store.QuerySpec{})
	if err != nil {
		t.Fatalf("query scenes: %v", err)
	}
	// Case-insensitive title order.
	assertIDs(t, sceneIDs(res), []string{"scene-1", "scene-2", "scene-3"})
	if res.Total != 3 {
		t.Errorf("expected total 3, got %d", res.Total)
	}
}

func TestQueryScenesHydration(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	res, err := s.QueryScenes(context.Background(), &store.QuerySpec{
		Filters: map[string]store.Filter{
			"id": {Modifier: store.ModEquals, Values: []string{"scene-1"}},
		},
	})
	if err != nil {
		t.Fatalf("query scenes: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 scene, got %d", len(res.Items))
	}

	sc := res.Items[0]
	if sc.Studio == nil || sc.Studio.Name != "Studio One" {
		t.Errorf("expected hydrated studio, got %+v", sc.Studio)
	}
	if len(sc.Performers) != 1 || sc.Performers[0].ID != "perf-1" {
		t.Errorf("expected performer perf-1, got %+v", sc.Performers)
	}
	if len(sc.Tags) != 1 || sc.Tags[0].ID != "tag-b" {
		t.Errorf("expected tag-b, got %+v", sc.Tags)
	}
	if len(sc.Groups) != 1 || sc.Groups[0].ID != "grp-1" {
		t.Errorf("expected grp-1, got %+v", sc.Groups)
	}
	if len(sc.GalleryIDs) != 1 || sc.GalleryIDs[0] != "gal-1" {
		t.Errorf("expected gal-1, got %v", sc.GalleryIDs)
	}
}

func TestQueryScalarFilters(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	// equals on studio
	res, err := s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"studio": {Modifier: store.ModEquals, Values: []string{"studio-1"}},
		},
	})
	if err != nil {
		t.Fatalf("equals: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1"})

	// contains on title
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"title": {Modifier: store.ModContains, Values: []string{"amm"}},
		},
	})
	if err != nil {
		t.Fatalf("contains: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-3"})

	// numeric range on duration
	min := "150"
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"duration": {Modifier: store.ModRange, Min: &min},
		},
	})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2"})

	// is_null on studio
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"studio": {Modifier: store.ModIsNull},
		},
	})
	if err != nil {
		t.Fatalf("is_null: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-3"})
}

func TestQueryRelationFilters(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	res, err := s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"tags": {Modifier: store.ModIncludesAny, Values: []string{"tag-c"}},
		},
	})
	if err != nil {
		t.Fatalf("includes_any: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2"})

	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"performers": {Modifier: store.ModIncludesAll, Values: []string{"perf-1"}},
		},
	})
	if err != nil {
		t.Fatalf("includes_all: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1"})

	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"tags": {Modifier: store.ModExcludes, Values: []string{"tag-b"}},
		},
	})
	if err != nil {
		t.Fatalf("excludes: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2", "scene-3"})

	// Zero rows of the relation.
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"tags": {Modifier: store.ModIsNull},
		},
	})
	if err != nil {
		t.Fatalf("relation is_null: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-3"})
}

func TestQueryHierarchicalTagFilter(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	// tag-a matches nothing directly; its descendant tag-b does.
	res, err := s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"tags": {Modifier: store.ModIncludesDescendants, Values: []string{"tag-a"}},
		},
	})
	if err != nil {
		t.Fatalf("includes_descendants: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1"})

	// After inheritance the image carries the gallery's tag-b and is
	// reachable the same way.
	if err := s.ApplyContainerInheritance(ctx); err != nil {
		t.Fatalf("apply inheritance: %v", err)
	}
	imgRes, err := s.QueryImages(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"tags": {Modifier: store.ModIncludesDescendants, Values: []string{"tag-a"}},
		},
	})
	if err != nil {
		t.Fatalf("query images: %v", err)
	}
	if len(imgRes.Items) != 1 || imgRes.Items[0].ID != "img-1" {
		t.Fatalf("expected img-1 via inherited tag-b, got %+v", imgRes.Items)
	}
	if len(imgRes.Items[0].Tags) != 1 || imgRes.Items[0].Tags[0].ID != "tag-b" {
		t.Errorf("image should carry tag-b, not the ancestor: %+v", imgRes.Items[0].Tags)
	}
}

func TestQueryPaginationAndCount(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	page1, err := s.QueryScenes(ctx, &store.QuerySpec{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	page2, err := s.QueryScenes(ctx, &store.QuerySpec{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}

	assertIDs(t, sceneIDs(page1), []string{"scene-1", "scene-2"})
	assertIDs(t, sceneIDs(page2), []string{"scene-3"})
	if page1.Total != 3 || page2.Total != 3 {
		t.Errorf("total must be page-independent: %d vs %d", page1.Total, page2.Total)
	}
}

// collectRandom gathers the full ID sequence for a seed and direction by
// walking pages of two.
func collectRandom(t *testing.T, s *Store, seed int64, dir store.Direction) []string {
	t.Helper()
	var out []string
	for page := 1; ; page++ {
		res, err := s.QueryScenes(context.Background(), &store.QuerySpec{
			Sort: store.SortRandom, Seed: &seed, Direction: dir,
			Page: page, PerPage: 2, IDsOnly: true,
		})
		if err != nil {
			t.Fatalf("random page %d: %v", page, err)
		}
		out = append(out, res.IDs...)
		if len(out) >= res.Total {
			return out
		}
	}
}

func TestRandomOrderingStableAcrossPages(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	first := collectRandom(t, s, 42, store.DirAsc)
	second := collectRandom(t, s, 42, store.DirAsc)
	assertIDs(t, second, first)

	// A single unpaged call sees the same sequence.
	seed := int64(42)
	whole, err := s.QueryScenes(context.Background(), &store.QuerySpec{
		Sort: store.SortRandom, Seed: &seed, PerPage: 100, IDsOnly: true,
	})
	if err != nil {
		t.Fatalf("unpaged query: %v", err)
	}
	assertIDs(t, whole.IDs, first)
}

func TestRandomOrderingExactlyReversible(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	asc := collectRandom(t, s, 42, store.DirAsc)
	desc := collectRandom(t, s, 42, store.DirDesc)

	if len(asc) != len(desc) {
		t.Fatalf("length mismatch: %v vs %v", asc, desc)
	}
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("descending is not the exact reverse: asc=%v desc=%v", asc, desc)
		}
	}
}

func TestRandomSeedGenerated(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	res, err := s.QueryScenes(ctx, &store.QuerySpec{
		Sort: store.SortRandom, UserID: "u1", PerPage: 100, IDsOnly: true,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Seed == nil {
		t.Fatal("expected a generated seed to be echoed")
	}

	// The echoed seed reproduces the order.
	again, err := s.QueryScenes(ctx, &store.QuerySpec{
		Sort: store.SortRandom, Seed: res.Seed, UserID: "u1", PerPage: 100, IDsOnly: true,
	})
	if err != nil {
		t.Fatalf("query with echoed seed: %v", err)
	}
	assertIDs(t, again.IDs, res.IDs)
}

func TestQueryExclusions(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	if err := s.Exclude(ctx, "u1", domain.EntityPerformer, "perf-1"); err != nil {
		t.Fatalf("exclude: %v", err)
	}

	// Scenes featuring the excluded performer vanish for u1.
	res, err := s.QueryScenes(ctx, &store.QuerySpec{UserID: "u1"})
	if err != nil {
		t.Fatalf("query as u1: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2", "scene-3"})
	if res.Total != 2 {
		t.Errorf("total must agree with the filtered set, got %d", res.Total)
	}

	// Even an explicit filter for that performer returns nothing.
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		UserID: "u1",
		Filters: map[string]store.Filter{
			"performers": {Modifier: store.ModIncludesAny, Values: []string{"perf-1"}},
		},
	})
	if err != nil {
		t.Fatalf("query filtered as u1: %v", err)
	}
	if len(res.Items) != 0 || res.Total != 0 {
		t.Errorf("excluded performer's scenes must be invisible, got %v total %d", sceneIDs(res), res.Total)
	}

	// Admins bypass exclusions.
	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		UserID: "u1", Role: domain.RoleAdmin,
		Filters: map[string]store.Filter{
			"performers": {Modifier: store.ModIncludesAny, Values: []string{"perf-1"}},
		},
	})
	if err != nil {
		t.Fatalf("query as admin: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1"})
}

func TestQueryStudioExclusionInherited(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	if err := s.Exclude(ctx, "u2", domain.EntityStudio, "studio-1"); err != nil {
		t.Fatalf("exclude studio: %v", err)
	}

	res, err := s.QueryScenes(ctx, &store.QuerySpec{UserID: "u2"})
	if err != nil {
		t.Fatalf("query scenes: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2", "scene-3"})

	// The studio's gallery is hidden too.
	gals, err := s.QueryGalleries(ctx, &store.QuerySpec{UserID: "u2"})
	if err != nil {
		t.Fatalf("query galleries: %v", err)
	}
	if len(gals.Items) != 0 {
		t.Errorf("gallery of excluded studio must be hidden, got %d", len(gals.Items))
	}
}

func TestQueryDirectSceneExclusion(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	if err := s.Exclude(ctx, "u3", domain.EntityScene, "scene-2"); err != nil {
		t.Fatalf("exclude: %v", err)
	}

	res, err := s.QueryScenes(ctx, &store.QuerySpec{UserID: "u3"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1", "scene-3"})
}

func TestVisibleCountsPerUser(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	// Global counter says one scene references tag-b.
	tags, err := s.GetTagsByIDs(ctx, []string{"tag-b"}, "", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("get tags: %v", err)
	}
	if tags[0].SceneCount != 1 {
		t.Fatalf("expected global scene_count 1, got %d", tags[0].SceneCount)
	}

	// For a user who excluded that one scene, it reads zero.
	if err := s.Exclude(ctx, "u1", domain.EntityScene, "scene-1"); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	tags, err = s.GetTagsByIDs(ctx, []string{"tag-b"}, "u1", domain.RoleUser)
	if err != nil {
		t.Fatalf("get tags as u1: %v", err)
	}
	if tags[0].SceneCount != 0 {
		t.Errorf("expected visible scene_count 0, got %d", tags[0].SceneCount)
	}
}

func TestQueryOverlayFilters(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	if err := s.SetRating(ctx, "u1", domain.EntityScene, "scene-1", 80); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if err := s.SetFavorite(ctx, "u1", domain.EntityScene, "scene-2"); err != nil {
		t.Fatalf("favorite: %v", err)
	}

	min := "50"
	res, err := s.QueryScenes(ctx, &store.QuerySpec{
		UserID: "u1",
		Filters: map[string]store.Filter{
			"rating": {Modifier: store.ModRange, Min: &min},
		},
	})
	if err != nil {
		t.Fatalf("rating filter: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1"})
	if res.Items[0].Rating == nil || *res.Items[0].Rating != 80 {
		t.Errorf("expected merged rating 80, got %v", res.Items[0].Rating)
	}

	res, err = s.QueryScenes(ctx, &store.QuerySpec{
		UserID: "u1",
		Filters: map[string]store.Filter{
			"favorite": {Modifier: store.ModEquals, Values: []string{"true"}},
		},
	})
	if err != nil {
		t.Fatalf("favorite filter: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-2"})
}

func TestQueryIDsOnly(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	res, err := s.QueryScenes(context.Background(), &store.QuerySpec{IDsOnly: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Items) != 0 {
		t.Error("IDs-only mode must not hydrate")
	}
	assertIDs(t, res.IDs, []string{"scene-1", "scene-2", "scene-3"})
}

func TestQueryInvalidFilter(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"nope": {Modifier: store.ModEquals, Values: []string{"x"}},
		},
	})
	if !errors.Is(err, store.ErrInvalidFilter) {
		t.Errorf("unknown field: expected ErrInvalidFilter, got %v", err)
	}

	_, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"title": {Modifier: store.ModIncludesAny, Values: []string{"x"}},
		},
	})
	if !errors.Is(err, store.ErrInvalidFilter) {
		t.Errorf("bad modifier: expected ErrInvalidFilter, got %v", err)
	}

	_, err = s.QueryScenes(ctx, &store.QuerySpec{Sort: "nope"})
	if !errors.Is(err, store.ErrInvalidFilter) {
		t.Errorf("unknown sort: expected ErrInvalidFilter, got %v", err)
	}

	// includes_descendants only works on hierarchical relations.
	_, err = s.QueryScenes(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"performers": {Modifier: store.ModIncludesDescendants, Values: []string{"perf-1"}},
		},
	})
	if !errors.Is(err, store.ErrInvalidFilter) {
		t.Errorf("non-hierarchical descendants: expected ErrInvalidFilter, got %v", err)
	}
}

func TestQueryCategoryEntities(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	perfs, err := s.QueryPerformers(ctx, &store.QuerySpec{})
	if err != nil {
		t.Fatalf("query performers: %v", err)
	}
	if len(perfs.Items) != 2 || perfs.Items[0].Name != "Ann" {
		t.Errorf("unexpected performers: %+v", perfs.Items)
	}
	if perfs.Items[0].SceneCount != 1 {
		t.Errorf("expected Ann scene_count 1, got %d", perfs.Items[0].SceneCount)
	}

	tags, err := s.QueryTags(ctx, &store.QuerySpec{
		Filters: map[string]store.Filter{
			"parents": {Modifier: store.ModIncludesAny, Values: []string{"tag-a"}},
		},
	})
	if err != nil {
		t.Fatalf("query tags: %v", err)
	}
	if len(tags.Items) != 1 || tags.Items[0].ID != "tag-b" {
		t.Fatalf("expected tag-b, got %+v", tags.Items)
	}
	if len(tags.Items[0].Parents) != 1 || tags.Items[0].Parents[0].ID != "tag-a" {
		t.Errorf("expected hydrated parent tag-a, got %+v", tags.Items[0].Parents)
	}

	groups, err := s.QueryGroups(ctx, &store.QuerySpec{})
	if err != nil {
		t.Fatalf("query groups: %v", err)
	}
	if len(groups.Items) != 1 || groups.Items[0].SceneCount != 1 {
		t.Errorf("unexpected groups: %+v", groups.Items)
	}

	studios, err := s.QueryStudios(ctx, &store.QuerySpec{
		Sort: "scene_count", Direction: store.DirDesc,
	})
	if err != nil {
		t.Fatalf("query studios: %v", err)
	}
	if len(studios.Items) != 2 {
		t.Fatalf("expected 2 studios, got %d", len(studios.Items))
	}

	gals, err := s.QueryGalleries(ctx, &store.QuerySpec{})
	if err != nil {
		t.Fatalf("query galleries: %v", err)
	}
	if len(gals.Items) != 1 || gals.Items[0].ImageCount != 1 {
		t.Errorf("expected gallery with 1 image, got %+v", gals.Items)
	}
	if len(gals.Items[0].SceneIDs) != 1 || gals.Items[0].SceneIDs[0] != "scene-1" {
		t.Errorf("expected scene-1 linked, got %v", gals.Items[0].SceneIDs)
	}
}

func TestSoftDeletedInvisible(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	// Full sync drops scene-3.
	syncBatch(t, s, domain.EntityScene, []store.SyncEntity{
		ent("scene-1", map[string]any{
			"title": "Alpha", "title_sort": "alpha", "date": "2026-01-01",
			"duration_sec": int64(100), "studio_id": "studio-1",
		}, map[string][]string{
			"performers": {"perf-1"}, "tags": {"tag-b"},
			"groups": {"grp-1"}, "galleries": {"gal-1"},
		}),
		ent("scene-2", map[string]any{
			"title": "beta", "title_sort": "beta", "date": "2026-02-01",
			"duration_sec": int64(200), "studio_id": "studio-2",
		}, map[string][]string{"performers": {"perf-2"}, "tags": {"tag-c"}}),
	})

	res, err := s.QueryScenes(ctx, &store.QuerySpec{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	assertIDs(t, sceneIDs(res), []string{"scene-1", "scene-2"})
	if res.Total != 2 {
		t.Errorf("expected total 2, got %d", res.Total)
	}
}
